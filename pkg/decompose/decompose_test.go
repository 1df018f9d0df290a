package decompose

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/sbom-sunburst/pkg/model"
)

const jsonSBOM = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "serialNumber": "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
  "version": 1,
  "components": [
    {"type": "library", "bom-ref": "qs@6.5.2", "name": "qs", "version": "6.5.2"}
  ]
}`

const xmlSBOM = `<?xml version="1.0" encoding="UTF-8"?>
<bom xmlns="http://cyclonedx.org/schema/bom/1.5" version="1">
  <components>
    <component type="library" bom-ref="qs@6.5.2">
      <name>qs</name>
      <version>6.5.2</version>
    </component>
  </components>
</bom>`

const response = `{
  "serialNumber": "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
  "md5": "d41d8cd98f00b204e9800998ecf8427e",
  "totalNodes": "2",
  "graph": {
    "name": "shop", "type": "application", "level": 0,
    "children": [
      {"name": "qs", "type": "library", "level": 1, "bomRef": "qs@6.5.2", "maxSeverity": 7.5, "totalCveCount": 1,
       "vulnerabilities": [{"id": "CVE-2022-24999", "maxRating": 7.5}]}
    ]
  },
  "dependencyCycles": [{"path": ["a", "b", "a"]}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatOf(t *testing.T) {
	format, err := FormatOf("bom.JSON")
	require.NoError(t, err)
	assert.Equal(t, cdx.BOMFileFormatJSON, format)

	format, err = FormatOf("sbom.cdx.xml")
	require.NoError(t, err)
	assert.Equal(t, cdx.BOMFileFormatXML, format)

	_, err = FormatOf("bom.spdx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewFileOptions(t *testing.T) {
	opts, err := NewFileOptions(writeFile(t, "bom.json", jsonSBOM), true, 12)
	require.NoError(t, err)

	require.Len(t, opts.Files, 1)
	assert.Equal(t, "bom.json", opts.Files[0].FileName)
	assert.Equal(t, jsonSBOM, string(opts.Files[0].Data))
	assert.True(t, opts.OnlyVulnerable)
	assert.Equal(t, 12, opts.MaxDepth)
}

func TestNewFileOptionsConvertsXML(t *testing.T) {
	opts, err := NewFileOptions(writeFile(t, "bom.xml", xmlSBOM), false, -1)
	require.NoError(t, err)

	require.Len(t, opts.Files, 1)
	assert.Equal(t, "bom.json", opts.Files[0].FileName)
	assert.Zero(t, opts.MaxDepth)

	var bom cdx.BOM
	require.NoError(t, json.Unmarshal(opts.Files[0].Data, &bom))
	require.NotNil(t, bom.Components)
	assert.Equal(t, "qs", (*bom.Components)[0].Name)
}

func TestNewFileOptionsErrors(t *testing.T) {
	_, err := NewFileOptions(writeFile(t, "bom.txt", jsonSBOM), false, 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewFileOptions(writeFile(t, "bom.json", "{not json"), false, 1)
	assert.Error(t, err)

	_, err = NewFileOptions(filepath.Join(t.TempDir(), "missing.json"), false, 1)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseBOM(t *testing.T) {
	bom, format, err := ParseBOM("bom.json", []byte(jsonSBOM))
	require.NoError(t, err)
	assert.Equal(t, cdx.BOMFileFormatJSON, format)
	assert.Equal(t, "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79", bom.SerialNumber)

	_, _, err = ParseBOM("bom.yaml", []byte(jsonSBOM))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecompose(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DecomposePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(response))
	}))
	defer srv.Close()

	opts := model.DecomposeOptions{
		Files:          []model.SBOMFile{{FileName: "bom.json", Data: []byte("{}")}},
		OnlyVulnerable: true,
		MaxDepth:       5,
	}
	d, err := NewClient(srv.URL+"/").Decompose(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, true, got["only_vulnerable"])
	assert.Equal(t, float64(5), got["max_depth"])
	files := got["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, map[string]any{"file_name": "bom.json", "data": "e30="}, files[0])

	require.True(t, d.HasGraph())
	assert.Equal(t, 2, d.NodeCount())
	assert.Equal(t, "qs", d.Graph.Children[0].Name)
	assert.Equal(t, 7.5, d.Graph.Children[0].Vulnerabilities[0].Rating())
	assert.Len(t, d.DependencyCycles, 1)
}

func TestDecomposeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "multiple files provided", http.StatusNotImplemented)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	opts := model.DecomposeOptions{Files: []model.SBOMFile{{FileName: "bom.json"}}}

	_, err := client.Decompose(context.Background(), opts)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotImplemented, statusErr.Code)
	assert.Equal(t, "multiple files provided", statusErr.Body)

	_, err = client.Decompose(context.Background(), model.DecomposeOptions{})
	assert.ErrorIs(t, err, ErrNoFiles)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Decompose(ctx, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecomposeRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(response))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	client.RetryDelay = time.Millisecond
	opts := model.DecomposeOptions{Files: []model.SBOMFile{{FileName: "bom.json"}}}

	d, err := client.Decompose(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, d.HasGraph())
}

func TestDecomposeGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	client.RetryDelay = time.Millisecond
	opts := model.DecomposeOptions{Files: []model.SBOMFile{{FileName: "bom.json"}}}

	_, err := client.Decompose(context.Background(), opts)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDecomposeDoesNotRetryMalformedResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	client.RetryDelay = time.Millisecond
	_, err := client.Decompose(context.Background(), model.DecomposeOptions{Files: []model.SBOMFile{{FileName: "bom.json"}}})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadFile(t *testing.T) {
	d, err := LoadFile(writeFile(t, "decomposition.json", response))
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", d.MD5)
	assert.Equal(t, model.TypeApplication, d.Graph.Type)

	_, err = Decode(strings.NewReader("[]"))
	assert.Error(t, err)
}
