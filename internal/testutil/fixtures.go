package testutil

import (
	"strconv"
	"strings"
)

// SalesCSV is a small sales table used across package tests.
const SalesCSV = `product,region,units,revenue
Widget,north,10,1200.50
Gadget,south,3,800
Doohickey,north,7,150.25
`

// LongCSV returns a one-column CSV with n data rows numbered from 1.
func LongCSV(n int) string {
	var b strings.Builder
	b.WriteString("n\n")
	for i := 1; i <= n; i++ {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte('\n')
	}
	return b.String()
}
