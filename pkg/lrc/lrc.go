// Package lrc parses LRC lyric files into time-ordered lines.
package lrc

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// 只识别 [分:秒.小数] 形式的时间标签，元数据标签（[ar:]、[ti:]）直接忽略
var timeTagRe = regexp.MustCompile(`\[(\d+):(\d+\.\d+)\](.*)`)

// Line 一行带时间戳的歌词
type Line struct {
	Time float64 // 秒
	Text string
}

// Parse converts raw LRC text into lines sorted by time. Lines without a
// [mm:ss.xx] tag are dropped; Parse never fails.
func Parse(text string) []Line {
	rows := strings.Split(text, "\n")
	result := make([]Line, 0, len(rows))

	for _, row := range rows {
		row = strings.TrimSuffix(row, "\r")
		match := timeTagRe.FindStringSubmatch(row)
		if match == nil {
			continue
		}
		minutes, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		seconds, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		result = append(result, Line{
			Time: minutes*60 + seconds,
			Text: strings.TrimSpace(match[3]),
		})
	}

	// 相同时间戳保持原始顺序
	sort.SliceStable(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result
}

// FormatTimestamp renders t as an LRC time tag, e.g. [01:05.50].
func FormatTimestamp(t float64) string {
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	centis := int64(math.Round(t * 100))
	minutes := centis / 6000
	centis -= minutes * 6000
	return fmt.Sprintf("[%02d:%02d.%02d]", minutes, centis/100, centis%100)
}

// Format renders lines back into LRC text, one tag per line.
func Format(lines []Line) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(FormatTimestamp(line.Time))
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Duration converts a line time in seconds to a time.Duration.
func Duration(t float64) time.Duration {
	return time.Duration(t * float64(time.Second))
}
