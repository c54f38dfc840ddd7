package game

import "math/rand"

// RolePool builds the role assignment pool for n participants: every role
// gets an equal base share, and the remainder is handed out round-robin in
// enumeration order. The pool itself is deterministic; only the permutation
// applied at game start is random.
func RolePool(n int) []Role {
	if n <= 0 {
		return nil
	}
	pool := make([]Role, 0, n)
	base := n / len(roleOrder)
	for _, r := range roleOrder {
		for i := 0; i < base; i++ {
			pool = append(pool, r)
		}
	}
	for i := 0; len(pool) < n; i++ {
		pool = append(pool, roleOrder[i%len(roleOrder)])
	}
	return pool
}

// RoleCounts reports how many of each role RolePool(n) contains.
func RoleCounts(n int) map[Role]int {
	counts := make(map[Role]int, len(roleOrder))
	for _, r := range RolePool(n) {
		counts[r]++
	}
	return counts
}

func shuffledPool(n int, rnd *rand.Rand) []Role {
	pool := RolePool(n)
	rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool
}
