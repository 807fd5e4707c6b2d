package suite

import (
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
)

func errFeatureDisabled(feature string) error {
	return tserrors.New(tserrors.CodeValidation, "feature "+feature+" is not enabled for this suite")
}
