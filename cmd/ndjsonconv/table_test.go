package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Format", "Tasks"}, [][]string{{"yolo"}}, nil)
	if !strings.Contains(out, "yolo") || !strings.Contains(out, "FORMAT") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestRenderFieldsHasNoHeader(t *testing.T) {
	out := renderFields([][2]string{{"Files", "3"}}, alignRight)
	if strings.Contains(out, "FIELD") || !strings.Contains(out, "Files") {
		t.Fatalf("unexpected field table:\n%s", out)
	}
}
