package main


import (
	"benchdriver/core"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)


var errUsage = errors.New("invalid usage")


func usageError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}


// Verbosity flag.
// Without a value it increments the level, otherwise it sets it either by
// number (fatal=1 ... trace=6) or by name.
//
type verbosity struct {
	level  core.LogLevel
}

const verbosity_increment string = "+"

func newVerbosity(level core.LogLevel) *verbosity {
	return &verbosity{ level }
}

func (this *verbosity) String() string {
	return strconv.Itoa(int(this.level))
}

func (this *verbosity) Type() string {
	return "level"
}

func (this *verbosity) Set(value string) error {
	var level core.LogLevel
	var num int
	var err error

	if value == verbosity_increment {
		if this.level < core.LOG_TRACE {
			this.level += 1
		}
		return nil
	}

	num, err = strconv.Atoi(value)
	if err == nil {
		if (num < int(core.LOG_SILENT)) || (num > int(core.LOG_TRACE)) {
			return fmt.Errorf("verbosity out of range: %d", num)
		}
		this.level = core.LogLevel(num)
		return nil
	}

	level, err = core.ParseLogLevel(value)
	if err != nil {
		return err
	}

	this.level = level

	return nil
}


// Parse a human amount such as `1.5` into base units, `decimals` being the
// number of decimal places of one unit.
// The sign is kept: the builders decide which amounts are valid.
//
func parseAmount(text string, decimals int32) (*big.Int, error) {
	var value decimal.Decimal
	var err error

	if decimals < 0 {
		return nil, core.NewError(core.STEP_BUILD, core.ErrInvalidAmount,
			fmt.Sprintf("negative decimals %d", decimals), nil)
	}

	value, err = decimal.NewFromString(text)
	if err != nil {
		return nil, core.NewError(core.STEP_BUILD, core.ErrInvalidAmount,
			fmt.Sprintf("cannot parse amount '%s'", text), err)
	}

	value = value.Shift(decimals)

	if !value.IsInteger() {
		return nil, core.NewError(core.STEP_BUILD, core.ErrInvalidAmount,
			fmt.Sprintf("amount '%s' has more than %d decimals",
			text, decimals), nil)
	}

	return value.BigInt(), nil
}

// Constructor arguments are handed over as strings and coerced by the
// protocol builder into the constructor parameter types.
//
func parseConstructorArgs(values []string) []interface{} {
	var ret []interface{} = make([]interface{}, len(values))
	var i int

	for i = range values {
		ret[i] = values[i]
	}

	return ret
}
