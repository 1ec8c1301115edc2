package linepattern

import "math"

// assignForbidden marks a line/feature pair outside the match gate. It is
// far larger than any sum of gated costs so the solver first maximises the
// number of real matches, and small enough to keep float64 precision in the
// potentials.
const assignForbidden = 1e6

const assignDim = MaxFeatures

// assigner solves the rectangular line-to-feature assignment problem with the
// Kuhn-Munkres algorithm (Jonker-Volgenant potentials). All working storage
// lives in fixed arrays so Solve never allocates.
type assigner struct {
	cost [assignDim][assignDim]float64
	u    [assignDim + 1]float64
	v    [assignDim + 1]float64
	p    [assignDim + 1]int
	way  [assignDim + 1]int
	minv [assignDim + 1]float64
	used [assignDim + 1]bool
	rows [assignDim]int
}

// Solve assigns each of the n rows to one of the m columns using the
// costs previously written to a.cost[i][j]. Entries at or above
// assignForbidden are never selected; result[i] is -1 when row i is
// unassigned. result must have length n.
func (a *assigner) Solve(n, m int, result []int) {
	if n == 0 {
		return
	}
	if m == 0 {
		for i := 0; i < n; i++ {
			result[i] = -1
		}
		return
	}

	dim := n
	if m > dim {
		dim = m
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			if i >= n || j >= m {
				a.cost[i][j] = assignForbidden
			}
		}
	}

	const inf = math.MaxFloat64 / 2
	for j := 0; j <= dim; j++ {
		a.u[j], a.v[j], a.p[j], a.way[j] = 0, 0, 0, 0
	}

	// 1-indexed internally; column 0 is virtual.
	for i := 1; i <= dim; i++ {
		a.p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			a.minv[j] = inf
			a.used[j] = false
		}
		a.used[0] = false

		for {
			a.used[j0] = true
			i0 := a.p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if a.used[j] {
					continue
				}
				cur := a.cost[i0-1][j-1] - a.u[i0] - a.v[j]
				if cur < a.minv[j] {
					a.minv[j] = cur
					a.way[j] = j0
				}
				if a.minv[j] < delta {
					delta = a.minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if a.used[j] {
					a.u[a.p[j]] += delta
					a.v[j] -= delta
				} else {
					a.minv[j] -= delta
				}
			}

			j0 = j1
			if a.p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			a.p[j0] = a.p[a.way[j0]]
			j0 = a.way[j0]
		}
	}

	for i := 0; i < dim; i++ {
		a.rows[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if a.p[j] > 0 {
			a.rows[a.p[j]-1] = j - 1
		}
	}

	for i := 0; i < n; i++ {
		col := a.rows[i]
		if col < 0 || col >= m || a.cost[i][col] >= assignForbidden {
			result[i] = -1
		} else {
			result[i] = col
		}
	}
}
