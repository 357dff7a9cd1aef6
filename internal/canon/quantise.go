// Copyright 2026 The Vifei Authors
// This file is part of Vifei.
//
// Vifei is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vifei is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vifei. If not, see <http://www.gnu.org/licenses/>.

package canon

// QuantiseUnit clamps x to [0,1] and scales it to a u64 fixed-precision
// integer by multiplying by 1_000_000 and rounding - the one sanctioned path
// for a float (e.g. queue_pressure) to enter a hashed structure. Round-half-
// up, matching the boundary behaviour tests in the spec (exact threshold
// values must quantise to the same integer on every run).
func QuantiseUnit(x float64) uint64 {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	scaled := x * 1_000_000
	return uint64(scaled + 0.5)
}

// DequantiseUnit reverses QuantiseUnit for display purposes only; it must
// never be used to reconstruct a value that re-enters a hash.
func DequantiseUnit(q uint64) float64 {
	return float64(q) / 1_000_000
}
