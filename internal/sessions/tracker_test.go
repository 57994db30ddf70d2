package sessions

import (
	"testing"
	"time"
)

func TestStartThenEndCompletes(t *testing.T) {
	tr := NewTracker()
	tr.Start("s1", "f1", FileInfo{FileName: "photo.jpg", FileSize: 2048, FileType: "image/jpeg"})

	rec, ok := tr.End("s1", "f1")
	if !ok {
		t.Fatal("End did not find the started upload")
	}
	if rec.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.EndTime.Before(rec.StartTime) {
		t.Errorf("endTime %v before startTime %v", rec.EndTime, rec.StartTime)
	}
	if rec.Duration() < 0 {
		t.Errorf("negative duration %v", rec.Duration())
	}

	stored, _ := tr.Get("s1", "f1")
	if stored.Status != StatusCompleted {
		t.Error("completion not persisted in tracker")
	}
}

func TestEndClampsBackwardsClock(t *testing.T) {
	tr := NewTracker()
	base := time.Unix(1000, 0)
	tr.now = func() time.Time { return base }
	tr.Start("s", "f", FileInfo{})

	tr.now = func() time.Time { return base.Add(-time.Minute) }
	rec, _ := tr.End("s", "f")
	if !rec.EndTime.Equal(rec.StartTime) {
		t.Errorf("endTime = %v, want clamped to %v", rec.EndTime, rec.StartTime)
	}
}

func TestEndWithoutStart(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.End("missing", "f"); ok {
		t.Error("End should report false for an unknown upload")
	}
	if tr.Len() != 0 {
		t.Error("End must not create records")
	}
}

func TestListSortedNewestFirst(t *testing.T) {
	tr := NewTracker()
	clock := time.Unix(1000, 0)
	tr.now = func() time.Time { return clock }

	tr.Start("s1", "a", FileInfo{FileName: "a"})
	clock = clock.Add(time.Second)
	tr.Start("s2", "b", FileInfo{FileName: "b"})
	clock = clock.Add(time.Second)
	tr.Start("s1", "c", FileInfo{FileName: "c"})
	tr.End("s1", "c")

	views := tr.List()
	if len(views) != 3 {
		t.Fatalf("len = %d, want 3", len(views))
	}
	order := []string{views[0].FileName, views[1].FileName, views[2].FileName}
	if order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("order = %v, want [c b a]", order)
	}
	if views[0].SessionID != "s1" || views[0].Status != StatusCompleted || views[0].EndTime == 0 {
		t.Errorf("unexpected view %+v", views[0])
	}
	if views[1].EndTime != 0 {
		t.Error("uploading record should have no end time")
	}
}

func TestRestartRefreshesRecord(t *testing.T) {
	tr := NewTracker()
	tr.Start("s", "f", FileInfo{FileName: "old"})
	tr.End("s", "f")
	tr.Start("s", "f", FileInfo{FileName: "new"})

	rec, _ := tr.Get("s", "f")
	if rec.Status != StatusUploading || rec.FileName != "new" || !rec.EndTime.IsZero() {
		t.Errorf("record not refreshed: %+v", rec)
	}
	if tr.Len() != 1 {
		t.Errorf("len = %d, want 1", tr.Len())
	}
}

func TestClear(t *testing.T) {
	tr := NewTracker()
	tr.Start("s", "f", FileInfo{})
	tr.Clear()
	if tr.Len() != 0 || len(tr.List()) != 0 {
		t.Error("Clear left records behind")
	}
}
