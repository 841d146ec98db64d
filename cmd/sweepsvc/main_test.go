package main

import "testing"

func TestParseTiers(t *testing.T) {
	tiers := parseTiers("duel:50000:2:3, draw:20000:4:2")
	if len(tiers) != 2 {
		t.Fatalf("got %d tiers, want 2", len(tiers))
	}
	if tiers[0].GameType != "duel" || tiers[0].EntryFee != 50000 || tiers[0].Capacity != 2 || tiers[0].Count != 3 {
		t.Fatalf("duel tier parsed as %+v", tiers[0])
	}
	if tiers[1].GameType != "draw" || tiers[1].EntryFee != 20000 || tiers[1].Capacity != 4 || tiers[1].Count != 2 {
		t.Fatalf("draw tier parsed as %+v", tiers[1])
	}
}

func TestParseTiersSkipsBadItems(t *testing.T) {
	tiers := parseTiers("duel:50000:2:3,oops,draw:x:4:2,draw:100:1:1,")
	if len(tiers) != 1 || tiers[0].GameType != "duel" {
		t.Fatalf("bad items not skipped: %+v", tiers)
	}
}

func TestParseTiersEmpty(t *testing.T) {
	if tiers := parseTiers(""); len(tiers) != 0 {
		t.Fatalf("empty plan produced tiers: %+v", tiers)
	}
}
