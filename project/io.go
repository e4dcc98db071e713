package project

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Decode reads a document. Unknown top level fields are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("decode project", "The project file is not a valid project document."),
			ftag.With(ftag.InvalidArgument))
	}
	return &doc, nil
}

// Load reads the document stored at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		kind := ftag.Internal
		if errors.Is(err, fs.ErrNotExist) {
			kind = ftag.NotFound
		}
		return nil, fault.Wrap(err, fmsg.With("open project"), ftag.With(kind))
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(path))
	}
	return doc, nil
}

// Encode writes doc in the same form Decode reads.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fault.Wrap(err, fmsg.With("encode project"))
	}
	return nil
}

// Save writes doc to path, replacing the file only once it is complete.
func Save(path string, doc *Document) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fault.Wrap(err, fmsg.With("save project"))
	}
	if err := Encode(f, doc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fault.Wrap(err, fmsg.With("save project"))
	}
	if err := os.Rename(tmp, path); err != nil {
		return fault.Wrap(err, fmsg.With("save project"))
	}
	return nil
}
