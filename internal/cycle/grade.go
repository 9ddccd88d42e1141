package cycle

// grade implements the quality grader of §4.4.5. Rules are evaluated in
// listed order; the first match wins.
func (cfg Config) grade(maxTH, maxSide int, typ Type) Grade {
	switch typ {
	case TypeOverflow:
		return GradeOverflow
	case TypeTimeout:
		return GradeTimeout
	}

	inRange := func(v, lo, hi int) bool { return v >= lo && v <= hi }
	thGood := inRange(maxTH, cfg.GoodMin, cfg.GoodMax)
	sideGood := inRange(maxSide, cfg.GoodMin, cfg.GoodMax)
	if thGood && sideGood {
		return GradeExcellent
	}

	if inRange(maxTH, cfg.ExtendedMin, cfg.ExtendedMax) && inRange(maxSide, cfg.ExtendedMin, cfg.ExtendedMax) {
		return GradeGood
	}

	thMarginal := inRange(maxTH, cfg.MarginalMin, cfg.MarginalMax)
	sideMarginal := inRange(maxSide, cfg.MarginalMin, cfg.MarginalMax)
	if (thGood && sideMarginal) || (sideGood && thMarginal) {
		return GradeMarginal
	}

	if maxTH < cfg.SensorLow && maxSide < cfg.SensorLow {
		return GradeSensorLow
	}
	if maxTH > cfg.PressureHigh || maxSide > cfg.PressureHigh {
		return GradePressureHigh
	}
	return GradeDefective
}

// sensorFlags implements §4.4.6: the two 0/1 sensor-validity flags.
func sensorFlags(th, side []int, maxTH, maxSide, goodMin, goodMax int) (thOk, sideOk bool) {
	thOk = maxTH >= goodMin && maxTH <= goodMax
	sideOk = maxSide >= goodMin && maxSide <= goodMax

	if maxTH >= 30 && maxSide <= 3 {
		nonzeroSide := countAbove(side, 5)
		if nonzeroSide <= 1 {
			sideOk = false
		}
	}
	if maxSide >= 30 && maxTH <= 3 {
		nonzeroTH := countAbove(th, 5)
		if nonzeroTH <= 1 {
			thOk = false
		}
	}

	if len(th) > 2 && distinctCount(th) == 1 {
		thOk = false
	}
	if len(side) > 2 && distinctCount(side) == 1 {
		sideOk = false
	}
	return thOk, sideOk
}

func countAbove(v []int, thresh int) int {
	n := 0
	for _, x := range v {
		if x > thresh {
			n++
		}
	}
	return n
}

func distinctCount(v []int) int {
	seen := make(map[int]struct{}, len(v))
	for _, x := range v {
		seen[x] = struct{}{}
	}
	return len(seen)
}
