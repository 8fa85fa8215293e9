package core

// Wallet holds a process owner's balance across the six in-game
// currencies. All arithmetic is componentwise signed 64-bit; there is no
// overflow checking since real play never approaches i64 limits.
type Wallet struct {
	DogeCoin          int64
	StarSleepShortage int64
	Ethereum          int64
	BitCoin           int64
	CrabCoin          int64
	Explosion         int64
}

// newbieWelcomePack is the starting wallet credited to every user when the
// game sets up: Explosion starts at 1 but, per design, is never credited or
// spent by any in-scope mechanic afterward.
func newbieWelcomePack() Wallet {
	return Wallet{DogeCoin: 1337, StarSleepShortage: -690, Ethereum: 128, Explosion: 1}
}

// Add returns the componentwise sum of two wallets.
func (w Wallet) Add(other Wallet) Wallet {
	return Wallet{
		DogeCoin:          w.DogeCoin + other.DogeCoin,
		StarSleepShortage: w.StarSleepShortage + other.StarSleepShortage,
		Ethereum:          w.Ethereum + other.Ethereum,
		BitCoin:           w.BitCoin + other.BitCoin,
		CrabCoin:          w.CrabCoin + other.CrabCoin,
		Explosion:         w.Explosion + other.Explosion,
	}
}

// Sub returns the componentwise difference of two wallets.
func (w Wallet) Sub(other Wallet) Wallet {
	return Wallet{
		DogeCoin:          w.DogeCoin - other.DogeCoin,
		StarSleepShortage: w.StarSleepShortage - other.StarSleepShortage,
		Ethereum:          w.Ethereum - other.Ethereum,
		BitCoin:           w.BitCoin - other.BitCoin,
		CrabCoin:          w.CrabCoin - other.CrabCoin,
		Explosion:         w.Explosion - other.Explosion,
	}
}

// CanAfford reports whether subtracting cost from w would leave every
// currency non-negative. A currency whose cost is non-positive is always
// affordable regardless of balance — charging never blocks a refund or a
// free action.
func (w Wallet) CanAfford(cost Wallet) bool {
	return affordableField(w.DogeCoin, cost.DogeCoin) &&
		affordableField(w.StarSleepShortage, cost.StarSleepShortage) &&
		affordableField(w.Ethereum, cost.Ethereum) &&
		affordableField(w.BitCoin, cost.BitCoin) &&
		affordableField(w.CrabCoin, cost.CrabCoin) &&
		affordableField(w.Explosion, cost.Explosion)
}

func affordableField(balance, cost int64) bool {
	if cost <= 0 {
		return true
	}
	return balance >= cost
}

// Score converts a wallet to the single integer leaderboard score:
// doge and ether and btc and sleep-debt contribute linearly, crab acts as
// a percentage multiplier on the linear total, and explosion never
// contributes.
func (w Wallet) Score() int64 {
	linear := w.DogeCoin*3 - w.StarSleepShortage + w.Ethereum*420 + w.BitCoin*35995
	scaled := float64(linear) * (1 + 0.01*float64(w.CrabCoin))
	return roundToNearestInt64(scaled)
}

func roundToNearestInt64(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return -int64(-v + 0.5)
}
