package sim

import (
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// DefaultTimeBase is the core tick used when a model does not name one.
const DefaultTimeBase = "1ps"

// TimeLord resolves named periods and frequencies into interned TimeConverters.
//
// Resolution strings are cached so repeated lookups skip parsing, and converters
// are interned by factor so "1GHz" and "1ns" yield the same *TimeConverter.
type TimeLord struct {
	timeBase    UnitAlgebra
	byFactor    map[uint64]*TimeConverter
	byString    *gocache.Cache
	nano        *TimeConverter
	micro       *TimeConverter
	milli       *TimeConverter
	inexactSeen map[string]bool
}

// NewTimeLord creates a TimeLord whose core tick is timeBase (e.g. "1ps").
func NewTimeLord(timeBase string) (*TimeLord, error) {
	if timeBase == "" {
		timeBase = DefaultTimeBase
	}
	ua, err := ParseUnitAlgebra(timeBase)
	if err != nil {
		return nil, configErr("NewTimeLord", "", err, "bad timebase %q", timeBase)
	}
	period, err := ua.Period()
	if err != nil {
		return nil, configErr("NewTimeLord", "", err, "bad timebase %q", timeBase)
	}
	if period.value.Sign() <= 0 {
		return nil, configErr("NewTimeLord", "", ErrInvalidTime, "timebase %q must be positive", timeBase)
	}
	tl := &TimeLord{
		timeBase:    period,
		byFactor:    make(map[uint64]*TimeConverter),
		byString:    gocache.New(gocache.NoExpiration, 0),
		inexactSeen: make(map[string]bool),
	}
	// sub-timebase shortcuts fall back to one tick per unit
	tl.nano = tl.shortcut("1ns")
	tl.micro = tl.shortcut("1us")
	tl.milli = tl.shortcut("1ms")
	return tl, nil
}

func (tl *TimeLord) shortcut(res string) *TimeConverter {
	tc, err := tl.TimeConverter(res)
	if err != nil {
		return tl.TimeConverterForFactor(1)
	}
	return tc
}

// TimeBase returns the core tick period.
func (tl *TimeLord) TimeBase() UnitAlgebra {
	return tl.timeBase
}

// TimeConverter resolves a period ("10ns") or frequency ("2GHz").
// A resolution finer than one core tick is rejected.
func (tl *TimeLord) TimeConverter(resolution string) (*TimeConverter, error) {
	if cached, ok := tl.byString.Get(resolution); ok {
		return cached.(*TimeConverter), nil
	}
	ua, err := ParseUnitAlgebra(resolution)
	if err != nil {
		return nil, configErr("TimeLord.TimeConverter", "", err, "cannot resolve %q", resolution)
	}
	tc, err := tl.TimeConverterForUnit(ua)
	if err != nil {
		return nil, err
	}
	tl.byString.Set(resolution, tc, gocache.NoExpiration)
	return tc, nil
}

// TimeConverterForUnit resolves an already parsed quantity.
func (tl *TimeLord) TimeConverterForUnit(ua UnitAlgebra) (*TimeConverter, error) {
	period, err := ua.Period()
	if err != nil {
		return nil, configErr("TimeLord.TimeConverter", "", err, "cannot resolve %s", ua)
	}
	factor, exact, err := period.RoundedRatio(tl.timeBase)
	if err != nil {
		return nil, configErr("TimeLord.TimeConverter", "", err, "cannot resolve %s", ua)
	}
	if factor == 0 {
		return nil, configErr("TimeLord.TimeConverter", "", ErrInvalidTime,
			"%s is finer than the core timebase %s", ua, tl.timeBase)
	}
	if !exact && !tl.inexactSeen[ua.String()] {
		tl.inexactSeen[ua.String()] = true
		logrus.Debugf("time resolution %s rounded to %d core ticks", ua, factor)
	}
	return tl.TimeConverterForFactor(factor), nil
}

// TimeConverterForFactor returns the interned converter for factor core ticks.
func (tl *TimeLord) TimeConverterForFactor(factor uint64) *TimeConverter {
	if tc, ok := tl.byFactor[factor]; ok {
		return tc
	}
	tc := &TimeConverter{factor: factor}
	tl.byFactor[factor] = tc
	return tc
}

// Nano returns the nanosecond converter.
func (tl *TimeLord) Nano() *TimeConverter { return tl.nano }

// Micro returns the microsecond converter.
func (tl *TimeLord) Micro() *TimeConverter { return tl.micro }

// Milli returns the millisecond converter.
func (tl *TimeLord) Milli() *TimeConverter { return tl.milli }
