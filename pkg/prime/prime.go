// Package prime implements the trial-division primality test used by the
// enumerator.
package prime

// IsPrime reports whether n is prime.
//
// Multiples of 2 and 3 are rejected up front; the remaining candidates are
// tested against divisors of the form 6k-1 and 6k+1 (i and i+2 for
// i = 5, 11, 17, ...) while i*i <= n. The bound is written as i <= n/i so
// it cannot overflow near math.MaxInt64.
func IsPrime(n int64) bool {
	if n <= 1 {
		return false
	}
	if n <= 3 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}

	for i := int64(5); i <= n/i; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// InRange returns the primes in [a, b] in increasing order.
// An inverted range yields an empty slice.
func InRange(a, b int64) []int64 {
	out := make([]int64, 0)
	for i := a; i <= b; i++ {
		if IsPrime(i) {
			out = append(out, i)
		}
		// i++ would wrap at MaxInt64
		if i == b {
			break
		}
	}
	return out
}
