// Copyright 2024 The netharness Authors
// This file is part of the netharness library.
//
// The netharness library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The netharness library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the netharness library. If not, see <http://www.gnu.org/licenses/>.

package topology

// Letters generates the names given to unnamed groups: A, B, ..., Z, AA,
// AB, ..., ZZ, AAA and so on. The zero value starts at A.
type Letters struct {
	n int
}

// Next returns the next name of the sequence.
func (l *Letters) Next() string {
	name := letterName(l.n)
	l.n++
	return name
}

// letterName converts n to bijective base 26.
func letterName(n int) string {
	var buf []byte
	for n++; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}
