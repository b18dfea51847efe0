package profile

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

func TestDefaultProfile(t *testing.T) {
	p := Default(7)
	if p.CharacterID != 7 {
		t.Fatalf("character id = %d, want 7", p.CharacterID)
	}
	for _, attr := range CoreAttributes {
		if got, _ := p.Value(attr); got != 10 {
			t.Fatalf("%s = %d, want 10", attr, got)
		}
	}
	if p.GoodEvil != 0 || p.OrderChaos != 0 {
		t.Fatalf("alignment = (%d, %d), want neutral", p.GoodEvil, p.OrderChaos)
	}
	if p.CombatPreference != 50 || p.Caution != 50 {
		t.Fatalf("preference/personality defaults = %d/%d, want 50", p.CombatPreference, p.Caution)
	}
}

func TestParseEffectSplitsKnownAndFreeform(t *testing.T) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(`{"strength":2,"wisdom":"3","curiosity":-1,"personality":"cautious","security":1,"good_evil":"very"}`), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	effect := ParseEffect(raw)

	if effect.Deltas[Strength] != 2 || effect.Deltas[Wisdom] != 3 || effect.Deltas[Curiosity] != -1 {
		t.Fatalf("deltas = %v", effect.Deltas)
	}
	if effect.Freeform["personality"] != "cautious" {
		t.Fatalf("personality = %v", effect.Freeform["personality"])
	}
	if effect.Freeform["security"] != float64(1) {
		t.Fatalf("security = %v", effect.Freeform["security"])
	}
	// Non-numeric values on schema keys are kept rather than dropped.
	if effect.Freeform["good_evil"] != "very" {
		t.Fatalf("good_evil = %v", effect.Freeform["good_evil"])
	}
}

func TestApplyClampsSchemaAttributes(t *testing.T) {
	p := Default(1).Apply(Effect{Deltas: map[Attribute]int{
		Strength:    500,
		Dexterity:   -500,
		GoodEvil:    -1000,
		OrderChaos:  1000,
		StrengthExp: 12345,
		Empathy:     75,
	}})
	if p.Strength != 100 || p.Dexterity != 0 {
		t.Fatalf("core = %d/%d, want 100/0", p.Strength, p.Dexterity)
	}
	if p.GoodEvil != -100 || p.OrderChaos != 100 {
		t.Fatalf("alignment = %d/%d, want -100/100", p.GoodEvil, p.OrderChaos)
	}
	if p.StrengthExp != 12345 {
		t.Fatalf("experience = %d, want unbounded 12345", p.StrengthExp)
	}
	if p.Empathy != 100 {
		t.Fatalf("empathy = %d, want 100", p.Empathy)
	}
}

func TestApplyFreeformTraits(t *testing.T) {
	p := Default(1)
	p = p.Apply(ParseEffect(map[string]any{"security": float64(1), "personality": "cautious"}))
	p = p.Apply(ParseEffect(map[string]any{"security": float64(1), "personality": "bold"}))

	if p.AdditionalTraits["security"] != float64(2) {
		t.Fatalf("security = %v, want 2", p.AdditionalTraits["security"])
	}
	if p.AdditionalTraits["personality"] != "bold" {
		t.Fatalf("personality = %v, want bold", p.AdditionalTraits["personality"])
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	p := Default(1).Apply(ParseEffect(map[string]any{"luck": float64(1)}))
	_ = p.Apply(ParseEffect(map[string]any{"luck": float64(5), "strength": float64(5)}))
	if p.AdditionalTraits["luck"] != float64(1) || p.Strength != 10 {
		t.Fatalf("receiver mutated: luck=%v strength=%d", p.AdditionalTraits["luck"], p.Strength)
	}
}

func TestApplyKeepsEveryBoundedValueInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	attrs := make([]Attribute, 0, len(ranges))
	for attr := range ranges {
		attrs = append(attrs, attr)
	}

	p := Default(1)
	for i := 0; i < 2000; i++ {
		effect := Effect{Deltas: map[Attribute]int{}}
		for j := 0; j < 4; j++ {
			attr := attrs[rng.IntN(len(attrs))]
			effect.Deltas[attr] = rng.IntN(2001) - 1000
		}
		p = p.Apply(effect)
		for _, attr := range attrs {
			min, max, bounded := Range(attr)
			if !bounded {
				continue
			}
			got, _ := p.Value(attr)
			if got < min || got > max {
				t.Fatalf("step %d: %s = %d outside [%d, %d]", i, attr, got, min, max)
			}
		}
	}

	huge := []struct {
		name    string
		payload string
		toMax   bool
	}{
		{name: "float above int range", payload: `{"strength":1e300,"good_evil":1e300}`, toMax: true},
		{name: "float below int range", payload: `{"strength":-1e300,"good_evil":-1e300}`},
		{name: "max int64", payload: `{"strength":9223372036854775807,"good_evil":9223372036854775807}`, toMax: true},
		{name: "numeric string past int64", payload: `{"strength":"99999999999999999999","good_evil":"99999999999999999999"}`, toMax: true},
	}
	for _, tc := range huge {
		t.Run(tc.name, func(t *testing.T) {
			var effect Effect
			if err := json.Unmarshal([]byte(tc.payload), &effect); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := Default(1).Apply(effect)
			for _, attr := range []Attribute{Strength, GoodEvil} {
				min, max, _ := Range(attr)
				want := min
				if tc.toMax {
					want = max
				}
				if v, _ := got.Value(attr); v != want {
					t.Fatalf("%s = %d, want %d", attr, v, want)
				}
			}
		})
	}

	maxed := Profile{Strength: 100}.Apply(Effect{Deltas: map[Attribute]int{Strength: math.MaxInt}})
	if maxed.Strength != 100 {
		t.Fatalf("strength = %d after MaxInt delta, want 100", maxed.Strength)
	}
}

func TestDeriveAlignment(t *testing.T) {
	tests := []struct {
		goodEvil   int
		orderChaos int
		want       string
	}{
		{0, 0, "True Neutral"},
		{29, -29, "True Neutral"},
		{30, 0, "Neutral Good"},
		{70, 0, "Neutral Very Good"},
		{-30, 0, "Neutral Evil"},
		{-70, 0, "Neutral Very Evil"},
		{0, 30, "Lawful Neutral"},
		{0, -70, "Very Chaotic Neutral"},
		{45, 45, "Lawful Good"},
		{-100, -100, "Very Chaotic Very Evil"},
		{80, -40, "Chaotic Very Good"},
	}
	for _, tc := range tests {
		p := Default(1)
		p.GoodEvil = tc.goodEvil
		p.OrderChaos = tc.orderChaos
		if got := DeriveAlignment(p); got != tc.want {
			t.Fatalf("DeriveAlignment(%d, %d) = %q, want %q", tc.goodEvil, tc.orderChaos, got, tc.want)
		}
	}
}

func TestEffectJSONRoundTripsFlatObject(t *testing.T) {
	var effect Effect
	if err := json.Unmarshal([]byte(`{"rule_following":1,"caution":2}`), &effect); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if effect.Deltas[Caution] != 2 {
		t.Fatalf("caution delta = %d, want 2", effect.Deltas[Caution])
	}
	data, err := json.Marshal(effect)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"caution":2,"rule_following":1}` {
		t.Fatalf("json = %s", data)
	}

	var empty Effect
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !empty.IsEmpty() {
		t.Fatal("expected null to decode to empty effect")
	}
}

type memoryStore struct {
	profiles map[int64]Profile
	puts     int
}

func (m *memoryStore) GetProfile(_ context.Context, id int64) (Profile, bool, error) {
	p, ok := m.profiles[id]
	return p, ok, nil
}

func (m *memoryStore) PutProfile(_ context.Context, p Profile) error {
	m.profiles[p.CharacterID] = p
	m.puts++
	return nil
}

func (m *memoryStore) ProfileTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return fn(ctx, m)
}

func TestApplyEffectCreatesAndSkipsNoop(t *testing.T) {
	store := &memoryStore{profiles: map[int64]Profile{}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p, err := ApplyEffect(context.Background(), store, 3, Effect{}, now)
	if err != nil {
		t.Fatalf("apply empty: %v", err)
	}
	if store.puts != 1 || p.Strength != 10 {
		t.Fatalf("expected default profile to be created, puts=%d", store.puts)
	}

	if _, err := ApplyEffect(context.Background(), store, 3, Effect{}, now); err != nil {
		t.Fatalf("apply empty again: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("no-op effect wrote profile, puts=%d", store.puts)
	}

	p, err = ApplyEffect(context.Background(), store, 3, Effect{Deltas: map[Attribute]int{Bravery: 5}}, now)
	if err != nil {
		t.Fatalf("apply bravery: %v", err)
	}
	if p.Bravery != 55 || !p.UpdatedAt.Equal(now) {
		t.Fatalf("bravery = %d updated = %v", p.Bravery, p.UpdatedAt)
	}
}

func TestServiceAlignment(t *testing.T) {
	store := &memoryStore{profiles: map[int64]Profile{}}
	svc := NewService(store)
	if _, err := svc.ApplyEffect(context.Background(), 9, Effect{Deltas: map[Attribute]int{GoodEvil: 40, OrderChaos: -75}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := svc.Alignment(context.Background(), 9)
	if err != nil {
		t.Fatalf("alignment: %v", err)
	}
	if got != "Very Chaotic Good" {
		t.Fatalf("alignment = %q, want %q", got, "Very Chaotic Good")
	}
}
