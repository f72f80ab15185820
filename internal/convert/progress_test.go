package convert

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReporterNeverMovesBackwards(t *testing.T) {
	ch := make(chan ProgressEvent, 16)
	r := newReporter(context.Background(), ch)

	r.emit(PhaseDownloading, 2, 4, "a.png")
	r.emit(PhaseDownloading, 1, 4, "b.png")
	r.emit(PhaseParsing, 9, 9, "")
	r.emit(PhaseConverting, 0, 4, "")
	r.emit(PhaseConverting, 5, 4, "c.png")
	close(ch)

	var got []ProgressEvent
	for ev := range ch {
		ev.Item = nil
		got = append(got, ev)
	}
	want := []ProgressEvent{
		{Phase: PhaseDownloading, Current: 2, Total: 4},
		{Phase: PhaseDownloading, Current: 2, Total: 4},
		{Phase: PhaseConverting, Current: 0, Total: 4},
		{Phase: PhaseConverting, Current: 5, Total: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestReporterItem(t *testing.T) {
	ch := make(chan ProgressEvent, 2)
	r := newReporter(context.Background(), ch)
	r.emit(PhaseZipping, 0, 1, "")
	r.emit(PhaseZipping, 1, 1, "data.yaml")
	if ev := <-ch; ev.Item != nil {
		t.Fatalf("expected no item, got %q", *ev.Item)
	}
	if ev := <-ch; ev.Item == nil || *ev.Item != "data.yaml" {
		t.Fatalf("unexpected item %v", ev.Item)
	}
}

func TestReporterDoesNotBlockAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newReporter(ctx, make(chan ProgressEvent))
	r.emit(PhaseParsing, 1, 1, "")

	var nilReporter *reporter
	nilReporter.emit(PhaseParsing, 1, 1, "")
}
