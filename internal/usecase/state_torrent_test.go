package usecase

import (
	"context"
	"errors"
	"testing"

	"torrentsession/internal/domain"
)

func seededEngine() *fakeEngine {
	engine := newFakeEngine()
	engine.put(domain.TorrentSnapshot{
		Metadata: domain.TorrentMetadata{ID: "a", Name: "Ubuntu ISO", TotalBytes: 300},
		Stats:    domain.TorrentStats{Progress: 0.5},
		Status:   domain.TorrentDownloading,
	})
	engine.put(domain.TorrentSnapshot{
		Metadata: domain.TorrentMetadata{ID: "b", Name: "album", TotalBytes: 100},
		Stats:    domain.TorrentStats{Progress: 1},
		Status:   domain.TorrentCompleted,
	})
	engine.put(domain.TorrentSnapshot{
		Metadata: domain.TorrentMetadata{ID: "c", Name: "debian iso", TotalBytes: 200},
		Stats:    domain.TorrentStats{Progress: 0.1},
		Paused:   true,
		Status:   domain.TorrentPaused,
	})
	return engine
}

func ids(snaps []domain.TorrentSnapshot) string {
	out := ""
	for _, s := range snaps {
		out += string(s.Metadata.ID)
	}
	return out
}

func TestGetTorrentState(t *testing.T) {
	uc := GetTorrentState{Engine: seededEngine()}
	snap, err := uc.Execute(context.Background(), "b")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if snap.Status != domain.TorrentCompleted {
		t.Fatalf("status = %q", snap.Status)
	}
	if _, err := uc.Execute(context.Background(), "zzz"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListTorrentStates(t *testing.T) {
	uc := ListTorrentStates{Engine: seededEngine()}
	paused := domain.TorrentPaused

	tests := []struct {
		name   string
		filter domain.TorrentFilter
		want   string
	}{
		{"admission order", domain.TorrentFilter{}, "abc"},
		{"reverse admission order", domain.TorrentFilter{SortOrder: domain.SortDesc}, "cba"},
		{"status filter", domain.TorrentFilter{Status: &paused}, "c"},
		{"search is case insensitive", domain.TorrentFilter{Search: "ISO"}, "ac"},
		{"sort by name", domain.TorrentFilter{SortBy: "name"}, "bca"},
		{"sort by progress desc", domain.TorrentFilter{SortBy: "progress", SortOrder: domain.SortDesc}, "bac"},
		{"sort by size", domain.TorrentFilter{SortBy: "totalBytes"}, "bca"},
		{"offset and limit", domain.TorrentFilter{Offset: 1, Limit: 1}, "b"},
		{"offset past end", domain.TorrentFilter{Offset: 5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := uc.Execute(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if ids(got) != tt.want {
				t.Fatalf("got %q, want %q", ids(got), tt.want)
			}
		})
	}
}

func TestListTorrentStatesWithoutEngine(t *testing.T) {
	if _, err := (ListTorrentStates{}).Execute(context.Background(), domain.TorrentFilter{}); err == nil {
		t.Fatalf("expected error without engine")
	}
}
