package room

import (
	"encoding/json"
	"testing"

	"github.com/wfunc/roomserver/logger"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	m.Run()
}

func TestRegistry_CreateAndGetRoom(t *testing.T) {
	registry := NewRegistry()

	room := registry.Create(4, Player{Name: "Ann", Color: "red"})
	if room == nil {
		t.Fatal("Create should not return nil")
	}

	if room.Code < 10000 || room.Code > 99999 {
		t.Errorf("Expected a 5-digit code, got %d", room.Code)
	}

	if room.Status != StatusOpen {
		t.Errorf("Expected new room to be open, got status %d", room.Status)
	}

	if len(room.Players) != 1 || room.Players[0].Name != "Ann" {
		t.Errorf("Expected the creator to be the sole player, got %+v", room.Players)
	}

	retrieved, exists := registry.Get(room.Code)
	if !exists {
		t.Fatal("Get should find the created room")
	}
	if retrieved != room {
		t.Error("Get should return the same room instance")
	}
}

func TestRegistry_CodesAreUnique(t *testing.T) {
	registry := NewRegistry()

	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		room := registry.Create(2, Player{Name: "creator", Color: "red"})
		if seen[room.Code] {
			t.Fatalf("Code %d issued twice while both rooms active", room.Code)
		}
		seen[room.Code] = true
	}

	if registry.Count() != 500 {
		t.Errorf("Expected 500 active rooms, got %d", registry.Count())
	}
}

func TestRegistry_RemoveFreesCode(t *testing.T) {
	registry := NewRegistry()

	room := registry.Create(2, Player{Name: "Ann", Color: "red"})
	code := room.Code

	removed, exists := registry.Remove(code)
	if !exists {
		t.Fatal("Remove should find the active room")
	}
	if removed != room {
		t.Error("Remove should return the removed room")
	}

	if _, exists := registry.Get(code); exists {
		t.Error("Get should not find a removed room")
	}

	if _, exists := registry.Remove(code); exists {
		t.Error("Removing a removed room should report absence")
	}
}

func TestPlayer_JSONRoundTripKeepsExtraFields(t *testing.T) {
	raw := []byte(`{"name":"Ann","color":"red","avatar":"cat","score":12}`)

	var p Player
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if p.Name != "Ann" || p.Color != "red" {
		t.Errorf("Identity fields not parsed: %+v", p)
	}
	if len(p.Extra) != 2 {
		t.Fatalf("Expected 2 extra fields, got %d", len(p.Extra))
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Re-parse failed: %v", err)
	}
	for _, key := range []string{"name", "color", "avatar", "score"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Marshaled player is missing %q", key)
		}
	}
	if string(fields["avatar"]) != `"cat"` {
		t.Errorf("Extra field was not transported verbatim: %s", fields["avatar"])
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ann", "ann"},
		{"ann ", "ann"},
		{" A n N\t", "ann"},
		{"Bo Peep", "bopeep"},
	}
	for _, c := range cases {
		if got := normalizeName(c.in); got != c.want {
			t.Errorf("normalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
