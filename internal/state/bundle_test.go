package state

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ClassPresenter/internal/ink"
)

func TestBundleRoundTrip(t *testing.T) {
	src := writeDeck(t, threeSlides)
	if err := os.WriteFile(filepath.Join(src, "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write layer: %v", err)
	}
	d := LoadOrCreate(Options{Perms: &perms{instructor: true}, WorkDir: t.TempDir()}, src)
	d.AddInk(line(11, 0, 0, 4, 4), false, 1)
	d.AddSubmission("alice", []ink.Path{line(12, 1, 1, 2, 2)}, "answer", 0)
	d.SetSlideText("notes")

	bundle := filepath.Join(t.TempDir(), "deck.cpxo")
	if err := d.WriteBundle(bundle); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	out := t.TempDir()
	got := LoadOrCreate(Options{Perms: &perms{}, WorkDir: out}, bundle)
	if got.SlideCount() != 3 {
		t.Fatalf("SlideCount = %d", got.SlideCount())
	}
	if _, err := os.Stat(filepath.Join(out, "a.png")); err != nil {
		t.Fatalf("layer not unpacked: %v", err)
	}
	if authors := got.SubmissionAuthors(); len(authors) != 1 || authors[0] != "alice" {
		t.Fatalf("authors = %v", authors)
	}
	if _, text := got.SelfInkOrSubmission(); text != "notes" {
		t.Fatalf("self text = %q", text)
	}
	got.GotoSlide(1, false)
	inst := got.InstructorInk()
	if len(inst) != 1 || inst[0].String() != line(11, 0, 0, 4, 4).String() {
		t.Fatalf("instructor ink = %v", inst)
	}
	if dims := got.Slides()[0].Dimensions; dims == nil || dims.Width != 800 || dims.Height != 600 {
		t.Fatalf("dimensions lost: %v", dims)
	}
}

func TestLoadCollapsesDuplicateSubmissions(t *testing.T) {
	d, _ := newTestDeck(t, &perms{instructor: true}, `<deck><slide>
  <submission from="bob"><text>old</text></submission>
  <submission from="amy"><text>a</text></submission>
  <submission from="bob"><text>new</text><path>1;0.0,0.0,1.0;4.0#0,0;1,1;</path></submission>
</slide></deck>`)
	if got := d.SubmissionAuthors(); strings.Join(got, ",") != "amy,bob" {
		t.Fatalf("authors = %v", got)
	}
	d.SetActiveSubmission(1)
	paths, text := d.SelfInkOrSubmission()
	if text != "new" || len(paths) != 1 {
		t.Fatalf("submission = %v %q", paths, text)
	}
}

func TestLoadSkipsMalformedStoredPaths(t *testing.T) {
	d, _ := newTestDeck(t, &perms{}, `<deck><slide><instructor>
  <path>garbage</path><path>2;0.0,0.0,1.0;4.0#3,3;</path>
</instructor></slide></deck>`)
	if got := d.InstructorInk(); len(got) != 1 || got[0].UID != 2 {
		t.Fatalf("instructor ink = %v", got)
	}
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "evil.cpxo")
	f, err := os.Create(bundle)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../escape.txt")
	w.Write([]byte("x"))
	zw.Close()
	f.Close()

	dest := t.TempDir()
	if err := unpackBundle(bundle, dest); err == nil {
		t.Fatalf("expected error for escaping entry")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt")); err == nil {
		t.Fatalf("entry escaped deck directory")
	}
}

func TestLoadBundleReplacesStaleWorkDir(t *testing.T) {
	src := writeDeck(t, threeSlides)
	bundle := filepath.Join(t.TempDir(), "deck.cpxo")
	if err := LoadOrCreate(Options{WorkDir: t.TempDir()}, src).WriteBundle(bundle); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	work := t.TempDir()
	stale := filepath.Join(work, "old-layer.png")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	d := LoadOrCreate(Options{WorkDir: work}, bundle)
	if d.SlideCount() != 3 {
		t.Fatalf("SlideCount = %d", d.SlideCount())
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale file survived unpack: %v", err)
	}

	again := filepath.Join(t.TempDir(), "again.cpxo")
	if err := d.WriteBundle(again); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	r, err := zip.OpenReader(again)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == "old-layer.png" {
			t.Fatalf("stale file repacked")
		}
	}
}

func TestBadBundleKeepsWorkDir(t *testing.T) {
	work := t.TempDir()
	kept := filepath.Join(work, deckFile)
	if err := os.WriteFile(kept, []byte("<deck/>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	bundle := filepath.Join(t.TempDir(), "bad.cpxo")
	os.WriteFile(bundle, []byte("not a zip"), 0o644)
	if err := unpackBundle(bundle, work); err == nil {
		t.Fatalf("expected error for corrupt bundle")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("work dir damaged: %v", err)
	}
}

func TestCorruptBundleFallsBackToDefault(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "bad.cpxo")
	os.WriteFile(bundle, []byte("not a zip"), 0o644)
	d := LoadOrCreate(Options{WorkDir: t.TempDir()}, bundle)
	if d.SlideCount() != 1 {
		t.Fatalf("SlideCount = %d", d.SlideCount())
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.yaml")
	m, err := ReadMetadata(path)
	if err != nil || m.CurrentIndex != 0 {
		t.Fatalf("missing sidecar: %+v %v", m, err)
	}

	d, _ := newTestDeck(t, &perms{}, threeSlides)
	d.GotoSlide(2, true)
	if err := WriteMetadata(path, d.Metadata()); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	m, err = ReadMetadata(path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if m.CurrentIndex != 2 || m.MimeType != MimeType {
		t.Fatalf("metadata = %+v", m)
	}
}
