package production

import "fmt"

// FormatContractNo renders a contract number from a year and a per-year
// sequence value, e.g. YG-2026-000042.
func FormatContractNo(year int, seq int64) string {
	return fmt.Sprintf("YG-%d-%06d", year, seq)
}
