package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSeatLabel(t *testing.T) {
	tests := []struct {
		seatType string
		seatNo   string
		want     string
	}{
		{"二等座", "01", "01A"},
		{"二等座", "05", "01F"},
		{"二等座", "06", "02A"},
		{"二等座", "80", "16F"},
		{"一等座", "04", "01F"},
		{"一等座", "40", "10F"},
		{"商务座", "02", "01F"},
		{"商务座", "10", "05F"},
		{"软卧", "11", "11号上铺"},
		{"软卧", "30", "30号下铺"},
		{"硬卧", "02", "01号中铺"},
		{"硬卧", "12", "04号下铺"},
		{"硬卧", "30", "10号下铺"},
		{"无座", "7", "07"},
		{"二等座", "x1", "x1"},
	}

	for _, tt := range tests {
		t.Run(tt.seatType+"/"+tt.seatNo, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSeatLabel(tt.seatNo, tt.seatType))
		})
	}
}

func TestFormatFullSeatLabel(t *testing.T) {
	assert.Equal(t, "01车01A号", FormatFullSeatLabel(1, "01", "二等座"))
	assert.Equal(t, "12车16F号", FormatFullSeatLabel(12, "80", "二等座"))
	assert.Equal(t, "03车01号上铺", FormatFullSeatLabel(3, "01", "硬卧"))
}

func TestParseSeatLabel_RoundTrip(t *testing.T) {
	for seatType, count := range map[string]int{"二等座": 80, "一等座": 40, "商务座": 10, "软卧": 30, "硬卧": 60} {
		for n := 1; n <= count; n++ {
			seatNo := FormatSeatLabel(fmt.Sprintf("%02d", n), seatType)
			got, ok := ParseSeatLabel(seatNo, seatType)
			assert.True(t, ok, "%s %s", seatType, seatNo)
			assert.Equal(t, fmt.Sprintf("%02d", n), got)
		}
	}

	_, ok := ParseSeatLabel("01B", "一等座")
	assert.False(t, ok)
	_, ok = ParseSeatLabel("01号中铺", "软卧")
	assert.False(t, ok)
}
