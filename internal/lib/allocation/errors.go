package allocation

import (
	"errors"
)

var (
	ErrInvalidInput         = errors.New("invalid allocation input")
	ErrInsufficientCapacity = errors.New("no staking pools available to receive stake")
)
