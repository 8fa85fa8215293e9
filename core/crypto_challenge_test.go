package core

import "testing"

func TestChallengeIDsAreFixed(t *testing.T) {
	cases := map[ChallengeKind]uint32{
		ChallengeBed:   0xbed,
		ChallengeDog:   0x420,
		ChallengeEther: 0x1337,
		ChallengeBtc:   0xb7c,
	}
	for kind, want := range cases {
		if got := kind.ChallengeID(); got != want {
			t.Fatalf("%v.ChallengeID() = %#x, want %#x", kind, got, want)
		}
	}
}

func TestChallengeVerifyFindsASolvingNonce(t *testing.T) {
	for _, kind := range []ChallengeKind{ChallengeBed, ChallengeDog, ChallengeEther, ChallengeBtc, ChallengeCrab} {
		c := Challenge{Kind: kind, Difficulty: 2, Data: []byte("puzzle")}
		found := false
		for nonce := uint32(0); nonce < 2000; nonce++ {
			if c.Verify(nonce) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no solving nonce found under 2000 tries for kind %v at difficulty 2", kind)
		}
	}
}

func TestChallengeVerifyIsDeterministic(t *testing.T) {
	c := Challenge{Kind: ChallengeBtc, Difficulty: 1, Data: []byte("abc")}
	var solving uint32 = 0
	for nonce := uint32(0); nonce < 10000; nonce++ {
		if c.Verify(nonce) {
			solving = nonce
			break
		}
	}
	if !c.Verify(solving) || !c.Verify(solving) {
		t.Fatal("Verify should be a pure function of (challenge, nonce)")
	}
}

func TestChallengeZeroDifficultyAlwaysSolves(t *testing.T) {
	c := Challenge{Kind: ChallengeDog, Difficulty: 0, Data: []byte("x")}
	if !c.Verify(0) {
		t.Fatal("difficulty 0 should accept any nonce")
	}
}
