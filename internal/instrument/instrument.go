// Package instrument holds the immutable instrument identity shared by
// every other component. An Instrument never changes for the life of a
// session; components only ever hold a copy or a pointer to the Suite's
// single instance.
package instrument

import (
	"fmt"
	"regexp"
	"strings"

	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// contractIDPattern matches CON.F.<EX>.<ROOT>.<MONTHYEAR>.
var contractIDPattern = regexp.MustCompile(`^CON\.F\.[A-Z0-9]+\.[A-Z]+\.[A-Z0-9]+$`)

// Instrument is the immutable identity + tick geometry of a tradable
// contract.
type Instrument struct {
	ContractID string
	Symbol     string
	TickSize   money.Decimal
	TickValue  money.Decimal
	Timezone   string
}

// New validates and constructs an Instrument. Symbols are normalized to
// uppercase roots.
func New(contractID, symbol string, tickSize, tickValue money.Decimal, timezone string) (*Instrument, error) {
	if !contractIDPattern.MatchString(contractID) {
		return nil, tserrors.New(tserrors.CodeValidation,
			fmt.Sprintf("contract id %q does not match CON.F.<EX>.<ROOT>.<MONTHYEAR>", contractID))
	}
	if tickSize.Sign() <= 0 {
		return nil, tserrors.New(tserrors.CodeValidation, "tick size must be positive")
	}
	if tickValue.Sign() <= 0 {
		return nil, tserrors.New(tserrors.CodeValidation, "tick value must be positive")
	}
	return &Instrument{
		ContractID: contractID,
		Symbol:     strings.ToUpper(symbol),
		TickSize:   tickSize,
		TickValue:  tickValue,
		Timezone:   timezone,
	}, nil
}

// Align snaps price to this instrument's tick using half-to-even rounding.
func (i *Instrument) Align(price money.Decimal) (aligned money.Decimal, adjusted bool) {
	return money.AlignToTick(price, i.TickSize)
}
