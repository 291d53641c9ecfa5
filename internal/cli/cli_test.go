package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
)

func TestParseConfigPairs(t *testing.T) {
	got, err := parseConfigPairs([]string{"webshareUsername=me", "websharePassword=a=b", " spaced =x"})
	if err != nil {
		t.Fatalf("parseConfigPairs: %v", err)
	}
	want := domain.Configuration{
		"webshareUsername": "me",
		"websharePassword": "a=b",
		"spaced":           "x",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigPairsRejectsMalformed(t *testing.T) {
	for _, pair := range []string{"novalue", "=value", ""} {
		if _, err := parseConfigPairs([]string{pair}); err == nil {
			t.Errorf("expected error for %q", pair)
		}
	}
}

func TestManifestCommandListsActiveResolverFields(t *testing.T) {
	t.Setenv("RESOLVERS", "webshare,hellspy")
	t.Setenv("LOG_FILE", "")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"manifest"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v (stderr %q)", err, errOut.String())
	}

	var manifest struct {
		ID        string               `json:"id"`
		Resources []string             `json:"resources"`
		Config    []domain.ConfigField `json:"config"`
	}
	if err := json.Unmarshal(out.Bytes(), &manifest); err != nil {
		t.Fatalf("decode manifest: %v\n%s", err, out.String())
	}
	if manifest.ID != "community.czstreams" {
		t.Fatalf("unexpected id %q", manifest.ID)
	}
	if diff := cmp.Diff([]string{"stream"}, manifest.Resources); diff != "" {
		t.Fatalf("resources mismatch (-want +got):\n%s", diff)
	}
	if len(manifest.Config) != 2 || manifest.Config[0].Title != "Webshare username" {
		t.Fatalf("expected only the webshare fields, got %+v", manifest.Config)
	}
}

func TestSearchCommandRejectsUnknownResolver(t *testing.T) {
	t.Setenv("RESOLVERS", "hellspy")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"search", "--resolver", "Nope", "--term", "x"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error for an inactive resolver")
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}
