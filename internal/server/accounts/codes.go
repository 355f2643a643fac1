package accounts

import (
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/tenantvault/internal/common"
)

// CodePattern is the shape of every verification and reset code.
var CodePattern = regexp.MustCompile(`^\d{3}-\d{3}$`)

// GenerateCode produces a human-readable code of the form "ddd-ddd": two
// independent random 3-digit groups, each uniform in [100, 999], drawn from
// crypto/rand.
func GenerateCode() (string, error) {
	first, err := common.RandIntInRange(100, 999)
	if err != nil {
		return "", err
	}
	second, err := common.RandIntInRange(100, 999)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%03d-%03d", first, second), nil
}
