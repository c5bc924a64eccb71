package protection

// Maximum measured earth fault loop impedance for a 0.4 s disconnection time
// at Uo = 230 V, Cmin = 0.95 (BS 7671 Table 41.3). RCBOs to BS EN 61009-1
// share the BS EN 60898 values for the same curve and rating.
var table41_3 = map[Curve]map[int]float64{
	CurveB: {
		6: 7.28, 10: 4.37, 16: 2.73, 20: 2.19, 25: 1.75, 32: 1.37,
		40: 1.09, 50: 0.87, 63: 0.69, 80: 0.55, 100: 0.44, 125: 0.35,
	},
	CurveC: {
		6: 3.64, 10: 2.19, 16: 1.37, 20: 1.09, 25: 0.87, 32: 0.68,
		40: 0.55, 50: 0.44, 63: 0.35, 80: 0.27, 100: 0.22, 125: 0.17,
	},
	// Type D devices are not manufactured below 10 A.
	CurveD: {
		10: 1.09, 16: 0.68, 20: 0.55, 25: 0.44, 32: 0.34,
		40: 0.27, 50: 0.22, 63: 0.17, 80: 0.14, 100: 0.11, 125: 0.09,
	},
}

// Moulded case breakers: magnetic trip set at 10 x In, Cmin 0.95.
var mccbCurveC = map[int]float64{
	100: 0.22,
	125: 0.17,
}

var sources = map[DeviceType]string{
	MCB:  "BS 7671:2018+A2:2022 Table 41.3 (BS EN 60898)",
	RCBO: "BS 7671:2018+A2:2022 Table 41.3 (BS EN 61009-1)",
	MCCB: "Manufacturer data (BS EN 60947-2), magnetic trip 10 x In",
}

const tableNotes = "0.4 s disconnection at Uo 230 V, Cmin 0.95; compare measured values directly"

func buildTable() map[Device]Entry {
	out := make(map[Device]Entry)
	for _, t := range []DeviceType{MCB, RCBO} {
		for curve, ratings := range table41_3 {
			for rating, zs := range ratings {
				out[Device{Type: t, Rating: rating, Curve: curve}] = Entry{
					MaxZs:  zs,
					Source: sources[t] + " Type " + string(curve),
					Notes:  tableNotes,
				}
			}
		}
	}
	for rating, zs := range mccbCurveC {
		out[Device{Type: MCCB, Rating: rating, Curve: CurveC}] = Entry{
			MaxZs:  zs,
			Source: sources[MCCB],
			Notes:  "Check the breaker's magnetic setting; adjustable trips change the limit",
		}
	}
	return out
}
