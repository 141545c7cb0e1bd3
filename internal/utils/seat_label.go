package utils

import (
	"fmt"
	"strconv"
	"strings"
)

type seatRowConfig struct {
	perRow  int
	letters []string
}

var seatRows = map[string]seatRowConfig{
	"二等座": {perRow: 5, letters: []string{"A", "B", "C", "D", "F"}},
	"一等座": {perRow: 4, letters: []string{"A", "C", "D", "F"}},
	"商务座": {perRow: 2, letters: []string{"A", "F"}},
}

var hardSleeperBerths = []string{"上铺", "中铺", "下铺"}

// FormatSeatLabel turns a ledger seat number into what is printed on the
// ticket: "01A" for seated classes, "01号上铺" for sleepers.
// Unparseable input is returned unchanged.
func FormatSeatLabel(seatNo, seatType string) string {
	num, err := strconv.Atoi(strings.TrimSpace(seatNo))
	if err != nil || num <= 0 {
		return seatNo
	}

	if cfg, ok := seatRows[seatType]; ok {
		row := (num + cfg.perRow - 1) / cfg.perRow
		return fmt.Sprintf("%02d%s", row, cfg.letters[(num-1)%cfg.perRow])
	}

	switch seatType {
	case "软卧":
		berth := "下铺"
		if num%2 == 1 {
			berth = "上铺"
		}
		return fmt.Sprintf("%02d号%s", num, berth)
	case "硬卧":
		return fmt.Sprintf("%02d号%s", (num+2)/3, hardSleeperBerths[(num-1)%3])
	}
	return fmt.Sprintf("%02d", num)
}

// FormatFullSeatLabel prefixes the car: "01车01A号", "03车02号中铺"
func FormatFullSeatLabel(carNo int, seatNo, seatType string) string {
	label := FormatSeatLabel(seatNo, seatType)
	if strings.Contains(label, "号") {
		return fmt.Sprintf("%02d车%s", carNo, label)
	}
	return fmt.Sprintf("%02d车%s号", carNo, label)
}

// ParseSeatLabel is the inverse of FormatSeatLabel. It returns false when the
// label does not belong to the seat type.
func ParseSeatLabel(label, seatType string) (string, bool) {
	if cfg, ok := seatRows[seatType]; ok {
		if len(label) < 2 {
			return "", false
		}
		row, err := strconv.Atoi(label[:len(label)-1])
		if err != nil || row <= 0 {
			return "", false
		}
		letter := label[len(label)-1:]
		for i, l := range cfg.letters {
			if l == letter {
				return fmt.Sprintf("%02d", (row-1)*cfg.perRow+i+1), true
			}
		}
		return "", false
	}

	parts := strings.SplitN(label, "号", 2)
	if len(parts) != 2 {
		return "", false
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n <= 0 {
		return "", false
	}

	switch seatType {
	case "软卧":
		if parts[1] != "上铺" && parts[1] != "下铺" {
			return "", false
		}
		return fmt.Sprintf("%02d", n), true
	case "硬卧":
		for i, berth := range hardSleeperBerths {
			if berth == parts[1] {
				return fmt.Sprintf("%02d", (n-1)*3+i+1), true
			}
		}
	}
	return "", false
}
