package state

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/logger"
)

type xmlDeck struct {
	XMLName xml.Name   `xml:"deck"`
	Slides  []xmlSlide `xml:"slide"`
}

type xmlSlide struct {
	Width       string          `xml:"width,attr,omitempty"`
	Height      string          `xml:"height,attr,omitempty"`
	Layers      []string        `xml:"layer"`
	Thumb       string          `xml:"thumb,omitempty"`
	Self        *xmlInk         `xml:"self"`
	Instructor  *xmlInk         `xml:"instructor"`
	Submissions []xmlSubmission `xml:"submission"`
}

type xmlInk struct {
	Text  string   `xml:"text,omitempty"`
	Paths []string `xml:"path"`
}

type xmlSubmission struct {
	From  string   `xml:"from,attr"`
	Text  string   `xml:"text,omitempty"`
	Paths []string `xml:"path"`
}

func readDeckFile(path string, log *logger.Logger) ([]*Slide, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc xmlDeck
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	slides := make([]*Slide, 0, len(doc.Slides))
	for i, xs := range doc.Slides {
		s := &Slide{Layers: xs.Layers, Thumb: xs.Thumb}
		s.Dimensions = parseDimensions(xs.Width, xs.Height)
		if xs.Instructor != nil {
			s.Instructor = decodePaths(xs.Instructor.Paths, log, i)
		}
		if xs.Self != nil {
			s.Self = decodePaths(xs.Self.Paths, log, i)
			s.SelfText = xs.Self.Text
		}
		for _, sub := range xs.Submissions {
			entry := Submission{Author: sub.From, Paths: decodePaths(sub.Paths, log, i), Text: sub.Text}
			if old := s.submissionIndex(sub.From); old >= 0 {
				s.Submissions = append(s.Submissions[:old], s.Submissions[old+1:]...)
			}
			s.Submissions = append(s.Submissions, entry)
		}
		slides = append(slides, s)
	}
	return slides, nil
}

func parseDimensions(w, h string) *Dimensions {
	if w == "" || h == "" {
		return nil
	}
	wf, err1 := strconv.ParseFloat(w, 64)
	hf, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || wf <= 0 || hf <= 0 {
		return nil
	}
	return &Dimensions{Width: wf, Height: hf}
}

func decodePaths(raw []string, log *logger.Logger, slide int) []ink.Path {
	var out []ink.Path
	for _, r := range raw {
		p := ink.Parse(strings.TrimSpace(r))
		if !p.Valid() {
			log.Debug("skipping malformed stored path", "slide", slide)
			continue
		}
		out = append(out, p)
	}
	return out
}

func encodePaths(paths []ink.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func writeDeckFile(path string, slides []*Slide) error {
	doc := xmlDeck{Slides: make([]xmlSlide, 0, len(slides))}
	for _, s := range slides {
		xs := xmlSlide{Layers: s.Layers, Thumb: s.Thumb}
		if s.Dimensions != nil {
			xs.Width = strconv.FormatFloat(s.Dimensions.Width, 'f', -1, 64)
			xs.Height = strconv.FormatFloat(s.Dimensions.Height, 'f', -1, 64)
		}
		if len(s.Self) > 0 || s.SelfText != "" {
			xs.Self = &xmlInk{Text: s.SelfText, Paths: encodePaths(s.Self)}
		}
		if len(s.Instructor) > 0 {
			xs.Instructor = &xmlInk{Paths: encodePaths(s.Instructor)}
		}
		for _, sub := range s.Submissions {
			xs.Submissions = append(xs.Submissions, xmlSubmission{From: sub.Author, Text: sub.Text, Paths: encodePaths(sub.Paths)})
		}
		doc.Slides = append(doc.Slides, xs)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, xml.Header); err != nil {
		f.Close()
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("encode deck: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// unpackBundle replaces dest with the bundle's contents. Extraction goes to
// a sibling directory first, so a bad bundle leaves dest untouched. Entries
// escaping the directory are rejected.
func unpackBundle(bundle, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(filepath.Dir(dest), ".unpack-*")
	if err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := extractAll(bundle, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func extractAll(bundle, dest string) error {
	r, err := zip.OpenReader(bundle)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer r.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, zf := range r.File {
		target := filepath.Join(dest, zf.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("bundle entry %q escapes deck directory", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extract(zf, target); err != nil {
			return err
		}
	}
	return nil
}

func extract(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// packBundle zips every regular file under dir into path.
func packBundle(dir, path string) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	absOut, _ := filepath.Abs(path)
	absTmp, _ := filepath.Abs(tmp)
	walkErr := filepath.WalkDir(dir, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !de.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == absOut || abs == absTmp {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if walkErr != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pack bundle: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
