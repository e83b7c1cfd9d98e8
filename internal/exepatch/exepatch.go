// Package exepatch rewrites literal byte sequences embedded in a compiled
// executable without loading the whole image into memory.
package exepatch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Substitution replaces every occurrence of From with To.
type Substitution struct {
	From []byte
	To   []byte
}

// StringSubstitution builds a Substitution from UTF-8 text.
func StringSubstitution(from, to string) Substitution {
	return Substitution{From: []byte(from), To: []byte(to)}
}

type reader struct {
	src  *bufio.Reader
	from []byte
	to   []byte
	// fail[i] is the length of the longest proper prefix of from[:i+1]
	// that is also its suffix.
	fail    []int
	matched int
	pending []byte
	err     error
}

// NewReader returns a reader that yields r with s applied. Matches do not
// overlap; once From is matched its bytes are consumed and To is emitted.
// Partially matched bytes that cannot complete a match are passed through
// unchanged, including any pending at end of stream.
//
// The returned reader is single-pass.
func NewReader(r io.Reader, s Substitution) io.Reader {
	if len(s.From) == 0 {
		return r
	}
	return &reader{
		src:  bufio.NewReader(r),
		from: s.From,
		to:   s.To,
		fail: failureTable(s.From),
	}
}

// Patch chains one stage per substitution in order: stage k+1 reads the
// output of stage k, so later substitutions see text produced by earlier ones.
func Patch(r io.Reader, subs []Substitution) io.Reader {
	for _, s := range subs {
		r = NewReader(r, s)
	}
	return r
}

func failureTable(p []byte) []int {
	fail := make([]int, len(p))
	k := 0
	for i := 1; i < len(p); i++ {
		for k > 0 && p[i] != p[k] {
			k = fail[k-1]
		}
		if p[i] == p[k] {
			k++
		}
		fail[i] = k
	}
	return fail
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.fill(len(p))
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill consumes up to want input bytes, appending output to pending.
func (r *reader) fill(want int) {
	if want < 1 {
		want = 1
	}
	for i := 0; i < want; i++ {
		b, err := r.src.ReadByte()
		if err != nil {
			// Flush a trailing partial match unreplaced.
			r.pending = append(r.pending, r.from[:r.matched]...)
			r.matched = 0
			r.err = err
			return
		}
		r.step(b)
	}
}

func (r *reader) step(b byte) {
	for r.matched > 0 && b != r.from[r.matched] {
		keep := r.fail[r.matched-1]
		r.pending = append(r.pending, r.from[:r.matched-keep]...)
		r.matched = keep
	}

	if b != r.from[r.matched] {
		r.pending = append(r.pending, b)
		return
	}

	r.matched++
	if r.matched == len(r.from) {
		r.pending = append(r.pending, r.to...)
		r.matched = 0
	}
}

// PatchFile streams src through subs into dst. dst is created or truncated
// with the permission bits of src.
func PatchFile(src, dst string, subs []Substitution) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(dst), err)
	}

	w := bufio.NewWriter(out)
	_, err = io.Copy(w, Patch(in, subs))
	if err == nil {
		err = w.Flush()
	}
	closeErr := out.Close()
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("patching %s: %w", filepath.Base(src), err)
	}
	if closeErr != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", filepath.Base(dst), closeErr)
	}

	// OpenFile honours the umask; restore the exact mode of the original.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("restoring permissions on %s: %w", filepath.Base(dst), err)
	}
	return nil
}
