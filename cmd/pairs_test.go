package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/forro/internal/formatter"
	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/shared"
	tu "github.com/desertthunder/forro/internal/testing"
)

func TestPairsAdd(t *testing.T) {
	t.Run("appends and prints the pair", func(t *testing.T) {
		h := newHarness(t)
		h.addPair(t, "Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres")

		if !strings.Contains(h.out.String(), "Added:") ||
			!strings.Contains(h.out.String(), "Falamansa - Xote dos Milagres -> Dominguinhos - Xote dos Milagres") {
			t.Errorf("unexpected output: %q", h.out.String())
		}

		content := tu.MustReadFile(t, h.storePath())
		if !strings.HasPrefix(content, strings.Join(repositories.Header, ",")+"\n") {
			t.Errorf("missing header:\n%s", content)
		}
		if !strings.Contains(content, "Falamansa,Xote dos Milagres,Dominguinhos,Xote dos Milagres,2024-05-01T12:00:00Z,manual,,,False") {
			t.Errorf("unexpected row:\n%s", content)
		}
	})

	t.Run("duplicate exits with a warning", func(t *testing.T) {
		h := newHarness(t)
		h.addPair(t, "Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres")

		err := h.run("pairs", "add", "--ba", "falamansa", "--bt", "XOTE DOS MILAGRES", "--oa", "dominguinhos", "--ot", " xote dos milagres ")
		if !errors.Is(err, shared.ErrDuplicatePair) {
			t.Fatalf("expected ErrDuplicatePair, got %v", err)
		}
		if exitCode(err) != 1 {
			t.Errorf("exit code = %d", exitCode(err))
		}
		stderr := h.errOut.String()
		if !strings.Contains(stderr, "Warning:") || !strings.Contains(stderr, "already exists") {
			t.Errorf("unexpected stderr: %q", stderr)
		}

		pairs, _ := repositories.NewCSVStore(h.storePath()).LoadAll(t.Context())
		if len(pairs) != 1 {
			t.Errorf("expected 1 stored pair, got %d", len(pairs))
		}
	})

	t.Run("validation errors are listed in field order", func(t *testing.T) {
		h := newHarness(t)

		err := h.run("pairs", "add", "--ba", "Falamansa", "--bt", "   ", "--oa", " ", "--ot", "Xote dos Milagres")
		if !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(h.errOut.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 validation messages, got %q", lines)
		}
		if !strings.Contains(lines[0], "Validation error:") || !strings.Contains(lines[0], "Brazilian track cannot be empty") {
			t.Errorf("first message = %q", lines[0])
		}
		if !strings.Contains(lines[1], "Original artist cannot be empty") {
			t.Errorf("second message = %q", lines[1])
		}
		if strings.Contains(h.out.String(), "Added:") {
			t.Error("nothing should be added")
		}
	})

	t.Run("near-duplicates are warned about", func(t *testing.T) {
		h := newHarness(t)
		h.addPair(t, "Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres")
		h.addPair(t, "Falamansa", "Xote dos Milagre", "Dominguinhos", "Xote dos Milagres")

		if !strings.Contains(h.errOut.String(), "similar to existing pair") {
			t.Errorf("expected near-duplicate warning, got %q", h.errOut.String())
		}
		if !strings.Contains(h.logs.String(), "possible near-duplicate") {
			t.Errorf("expected warning log, got %q", h.logs.String())
		}
	})

	t.Run("sqlite store", func(t *testing.T) {
		h := newHarness(t, withDriver(shared.StoreDriverSQLite, "pairs.db"))
		h.addPair(t, "Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres")

		if err := h.run("pairs", "add", "--ba", "FALAMANSA", "--bt", "Xote dos Milagres", "--oa", "Dominguinhos", "--ot", "Xote dos Milagres"); !errors.Is(err, shared.ErrDuplicatePair) {
			t.Errorf("expected ErrDuplicatePair, got %v", err)
		}
	})
}

func TestPairsList(t *testing.T) {
	seed := func(t *testing.T) *harness {
		h := newHarness(t)
		added := models.NewTrackPair("Trio Nordestino", "Forró Pesado", "Jackson do Pandeiro", "Chiclete com Banana", "manual")
		added.AddedAt = "2024-01-01T00:00:00Z"
		added.BrazilianHasSpotify = models.Available
		added.OriginalHasSpotify = models.Available
		added.InPlaylist = true
		pending := models.NewTrackPair("Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres", "manual")
		pending.AddedAt = "2024-01-02T00:00:00Z"

		store := repositories.NewCSVStore(h.storePath())
		if err := store.WriteAll(t.Context(), []models.TrackPair{added, pending}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		return h
	}

	t.Run("text", func(t *testing.T) {
		h := seed(t)
		if err := h.run("pairs", "list"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := h.out.String()
		if !strings.Contains(out, "Track pairs: 2") || !strings.Contains(out, "[added]") || !strings.Contains(out, "[pending]") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("filtered json", func(t *testing.T) {
		h := seed(t)
		if err := h.run("pairs", "list", "--status", "pending", "--format", "json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []formatter.IndexedPair
		if err := json.Unmarshal(h.out.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, h.out.String())
		}
		if len(got) != 1 || got[0].Index != 1 || got[0].Pair.BrazilianArtist != "Falamansa" {
			t.Errorf("unexpected pairs: %+v", got)
		}
	})

	t.Run("markdown to file", func(t *testing.T) {
		h := seed(t)
		path := filepath.Join(h.dir, "out", "pairs.md")
		if err := h.run("pairs", "list", "--format", "md", "--output", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, path), "| Brazilian artist |") {
			t.Error("expected markdown table in export")
		}
		if !strings.Contains(h.out.String(), "2 pairs written") {
			t.Errorf("unexpected output: %q", h.out.String())
		}
	})

	t.Run("bad flags", func(t *testing.T) {
		h := seed(t)
		if err := h.run("pairs", "list", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for format, got %v", err)
		}
		if err := h.run("pairs", "list", "--status", "lost"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for status, got %v", err)
		}
	})

	t.Run("invalid store header", func(t *testing.T) {
		h := newHarness(t)
		tu.MustWriteFile(t, filepath.Join(h.dir, "bad.csv"), "a,b,c\n")
		h.config.Store.DataDir = h.dir
		h.config.Store.Filename = "bad.csv"
		if err := shared.SaveConfig(h.configPath, h.config); err != nil {
			t.Fatal(err)
		}

		if err := h.run("pairs", "list"); !errors.Is(err, shared.ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})
}

func TestPairsImport(t *testing.T) {
	header := strings.Join(repositories.Header, ",") + "\n"

	t.Run("merges valid rows and reports rejects", func(t *testing.T) {
		h := newHarness(t)
		h.addPair(t, "Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres")

		file := filepath.Join(h.dir, "import.csv")
		tu.MustWriteFile(t, file, header+
			"Trio Nordestino,Forró Pesado,Jackson do Pandeiro,Chiclete com Banana,2023-01-01T00:00:00Z,sheet,True,True,True\n"+
			"FALAMANSA,xote dos milagres,DOMINGUINHOS,Xote Dos Milagres,,sheet,,,\n"+
			",Missing Artist,A,B,,sheet,,,\n"+
			"Mastruz com Leite,Meu Vaqueiro,Luiz Gonzaga,Asa Branca,,sheet,,,\n"+
			"mastruz com leite,meu vaqueiro,luiz gonzaga,asa branca,,sheet,,,\n")

		if err := h.run("pairs", "import", "--file", file); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(h.out.String(), "Imported 2 pairs (3 rejected)") {
			t.Errorf("unexpected output: %q", h.out.String())
		}
		stderr := h.errOut.String()
		for _, want := range []string{"row 3", "row 4", "row 6", "already exists", "cannot be empty"} {
			if !strings.Contains(stderr, want) {
				t.Errorf("stderr missing %q:\n%s", want, stderr)
			}
		}

		pairs, err := repositories.NewCSVStore(h.storePath()).LoadAll(t.Context())
		if err != nil {
			t.Fatalf("reload failed: %v", err)
		}
		if len(pairs) != 3 {
			t.Fatalf("expected 3 pairs, got %d", len(pairs))
		}
		if !pairs[1].InPlaylist || pairs[1].AddedAt != "2023-01-01T00:00:00Z" {
			t.Errorf("imported flags and timestamp should be kept: %+v", pairs[1])
		}
		if pairs[2].AddedAt != "2024-05-01T12:00:00Z" {
			t.Errorf("missing timestamp should be stamped, got %q", pairs[2].AddedAt)
		}
	})

	t.Run("dry run leaves the store alone", func(t *testing.T) {
		h := newHarness(t)
		h.addPair(t, "Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres")
		before := tu.MustReadFile(t, h.storePath())

		file := filepath.Join(h.dir, "import.csv")
		tu.MustWriteFile(t, file, header+"Mastruz com Leite,Meu Vaqueiro,Luiz Gonzaga,Asa Branca,,sheet,,,\n")

		if err := h.run("pairs", "import", "--file", file, "--dry-run"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(h.out.String(), "Would import 1 pairs") {
			t.Errorf("unexpected output: %q", h.out.String())
		}
		if tu.MustReadFile(t, h.storePath()) != before {
			t.Error("dry run modified the store")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("pairs", "import", "--file", filepath.Join(h.dir, "nope.csv")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("bad header", func(t *testing.T) {
		h := newHarness(t)
		file := filepath.Join(h.dir, "import.csv")
		tu.MustWriteFile(t, file, "artist,track\nA,B\n")
		if err := h.run("pairs", "import", "--file", file); !errors.Is(err, shared.ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})
}

func TestMergePairs(t *testing.T) {
	existing := []models.TrackPair{models.NewTrackPair("A", "B", "C", "D", "")}
	incoming := []models.TrackPair{
		{BrazilianArtist: " E ", BrazilianTrack: "F", OriginalArtist: "G", OriginalTrack: "H"},
		{BrazilianArtist: "e", BrazilianTrack: "f", OriginalArtist: "g", OriginalTrack: "h"},
	}

	stamped := 0
	merged, rejected := mergePairs(existing, incoming, func(p *models.TrackPair) {
		stamped++
		p.AddedAt = "now"
	})

	if len(merged) != 2 || merged[1].BrazilianArtist != "E" || merged[1].AddedAt != "now" {
		t.Errorf("unexpected merge: %+v", merged)
	}
	if len(rejected) != 1 || rejected[0].Row != 3 || !errors.Is(rejected[0].Reason, shared.ErrDuplicatePair) {
		t.Errorf("unexpected rejects: %+v", rejected)
	}
	if stamped != 1 {
		t.Errorf("stamped %d pairs, want 1", stamped)
	}
	if len(existing) != 1 {
		t.Error("existing slice must not be modified")
	}
}
