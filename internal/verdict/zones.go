package verdict

import (
	"math"
	"sort"
)

// ZoneSide is the position side that would be liquidated at a zone.
type ZoneSide string

const (
	ZoneLong  ZoneSide = "LONG"
	ZoneShort ZoneSide = "SHORT"
)

// MaintenanceFactor shrinks the naive 1/L liquidation distance to account
// for maintenance margin.
const MaintenanceFactor = 0.95

// ZoneSource labels every zone so consumers never present it as
// exchange-reported data.
const ZoneSource = "estimate"

// DefaultLeverageTiers are the leverage levels zones are estimated for.
var DefaultLeverageTiers = []int{10, 25, 50, 100}

// Zone is one estimated liquidation level.
type Zone struct {
	Leverage int      `json:"leverage"`
	Price    float64  `json:"price"`
	Side     ZoneSide `json:"side"`
	Distance float64  `json:"distance"`
	Source   string   `json:"source"`
}

// EstimateZones returns one LONG and one SHORT zone per tier, nearest to
// price first. A non-positive price yields nil.
func EstimateZones(price float64, tiers []int) []Zone {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil
	}

	zones := make([]Zone, 0, len(tiers)*2)
	for _, lev := range tiers {
		if lev <= 0 {
			continue
		}
		off := MaintenanceFactor / float64(lev)
		long := price * (1 - off)
		short := price * (1 + off)
		zones = append(zones,
			Zone{Leverage: lev, Price: long, Side: ZoneLong, Distance: math.Abs(long - price), Source: ZoneSource},
			Zone{Leverage: lev, Price: short, Side: ZoneShort, Distance: math.Abs(short - price), Source: ZoneSource},
		)
	}

	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].Distance < zones[j].Distance
	})
	return zones
}
