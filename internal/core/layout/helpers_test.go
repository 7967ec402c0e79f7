package layout

import (
	"fmt"
	"strings"

	"streamlayout/internal/core/domain"
)

func remoteCamera(id string) domain.Stream {
	return domain.Stream{ID: domain.StreamID(id), HasVideo: true, IsEnabled: true, DisplayName: "user-" + id}
}

func localCamera(id string) domain.Stream {
	s := remoteCamera(id)
	s.IsMine = true
	return s
}

func remoteShare(id string) domain.Stream {
	s := remoteCamera(id)
	s.IsScreenShare = true
	return s
}

func localShare(id string) domain.Stream {
	s := localCamera(id)
	s.IsScreenShare = true
	return s
}

// describe renders items as "id:state" or "more[a,b]" for compact assertions.
func describe(items []domain.StreamItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case domain.StreamTile:
			out = append(out, fmt.Sprintf("%s:%s", it.ID, it.State))
		case domain.MoreTile:
			names := make([]string, 0, len(it.Users))
			for _, u := range it.Users {
				names = append(names, strings.TrimPrefix(u.DisplayName, "user-"))
			}
			out = append(out, "more["+strings.Join(names, ",")+"]")
		}
	}
	return out
}

// occurrences counts how often each stream appears across tiles and buckets.
func occurrences(items []domain.StreamItem) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		switch it := item.(type) {
		case domain.StreamTile:
			counts[string(it.ID)]++
		case domain.MoreTile:
			for _, u := range it.Users {
				counts[strings.TrimPrefix(u.DisplayName, "user-")]++
			}
		}
	}
	return counts
}

type recordingSender struct {
	messages []domain.Message
}

func (r *recordingSender) Send(msg domain.Message) {
	r.messages = append(r.messages, msg)
}

func (r *recordingSender) count(want domain.Message) int {
	n := 0
	for _, msg := range r.messages {
		if msg == want {
			n++
		}
	}
	return n
}

func streamIDs(ids ...string) []domain.StreamID {
	out := make([]domain.StreamID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.StreamID(id))
	}
	return out
}
