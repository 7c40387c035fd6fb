package store

import (
	"fmt"
	"hash"
	"io"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// verifyingReader hashes everything read through it and turns io.EOF into
// ErrCorrupt when the digest or length disagrees with the record.
type verifyingReader struct {
	rc   io.ReadCloser
	rec  simpleasset.ArtifactRecord
	h    hash.Hash
	n    int64
	done error
}

func newVerifyingReader(rc io.ReadCloser, rec simpleasset.ArtifactRecord) *verifyingReader {
	return &verifyingReader{rc: rc, rec: rec, h: rec.Hash.Algorithm().New()}
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	if v.done != nil {
		return 0, v.done
	}
	n, err := v.rc.Read(p)
	if n > 0 {
		v.h.Write(p[:n])
		v.n += int64(n)
		if v.n > v.rec.Size {
			v.done = v.corrupt(fmt.Sprintf("size exceeds recorded %d bytes", v.rec.Size))
			return n, v.done
		}
	}
	if err == io.EOF {
		v.done = v.check()
		return n, v.done
	}
	return n, err
}

func (v *verifyingReader) check() error {
	if v.n != v.rec.Size {
		return v.corrupt(fmt.Sprintf("size %d, recorded %d", v.n, v.rec.Size))
	}
	got := simpleasset.Hash(string(v.rec.Hash.Algorithm()) + ":" + fmt.Sprintf("%x", v.h.Sum(nil)))
	if got != v.rec.Hash {
		return v.corrupt(fmt.Sprintf("hash %s, recorded %s", got, v.rec.Hash))
	}
	return io.EOF
}

func (v *verifyingReader) corrupt(detail string) error {
	return &simpleasset.StoreError{ID: v.rec.ID, Op: "verify", Err: fmt.Errorf("%w: %s", simpleasset.ErrCorrupt, detail)}
}

func (v *verifyingReader) Close() error {
	return v.rc.Close()
}
