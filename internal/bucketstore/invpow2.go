package bucketstore

import "sketchcore.dev/sketcherr"

// invPow2Table caches 2^-e for e in [0, 1023], since the set of valid
// exponents is small and fixed; every call recomputing math.Pow would be
// wasted work on the hot aggregation path.
var invPow2Table = func() [1024]float64 {
	var t [1024]float64
	for e := 0; e < 1024; e++ {
		t[e] = pow2Neg(e)
	}
	return t
}()

func pow2Neg(e int) float64 {
	v := 1.0
	for i := 0; i < e; i++ {
		v /= 2
	}
	return v
}

// InvPow2 returns 2^-e for 0 <= e <= 1023.
func InvPow2(e int) (float64, error) {
	if e < 0 || e > 1023 {
		return 0, sketcherr.New(sketcherr.Domain, "bucketstore.InvPow2", "e cannot be negative or greater than 1023")
	}
	return invPow2Table[e], nil
}

// ComputeInvPow2Sum returns (numBuckets - observed) + sum(2^-value) over the
// buckets produced by it, where observed is the number of buckets the
// iterator yields. An empty iterator therefore returns numBuckets exactly,
// since every unobserved bucket contributes 2^-0 = 1.
func ComputeInvPow2Sum(numBuckets int, it Iterator) (float64, error) {
	observed := 0
	sum := 0.0
	for it.Next() {
		v, err := InvPow2(int(it.Value()))
		if err != nil {
			return 0, err
		}
		sum += v
		observed++
	}
	return float64(numBuckets-observed) + sum, nil
}
