package metrics

import (
	"bytes"
	"math"
	"reflect"
	"strconv"

	"github.com/KaramelBytes/agentcompare/internal/utils"
)

// Column names of the support-metrics export. Matching is exact.
const (
	ColMessagesSent                   = "Messages Sent"
	ColUniqueConversationsMessaged    = "Unique Conversations Messaged"
	ColConversationsMarkedDone        = "Conversations Marked Done"
	ColUniqueCustomersMessaged        = "Unique Customers Messaged"
	ColAvgConversationHandleTime      = "Avg Conversation Handle Time (s)"
	ColAvgSentMessagesPerConversation = "Avg Sent Messages Per Conversation"
	ColAvgSentMessagesPerCustomer     = "Avg Sent Messages Per Customer"
	ColFirstContactResolutionRate     = "First Contact Resolution Rate"
	ColAvgMessageResponseTimes        = "Avg Message Response Times (ms)"
	ColAvgFirstResponseTime           = "Avg First Response Time (ms)"
	ColMedianFirstResponseTime        = "Median First Response Time (ms)"
	ColAvgTimeToFirstResolution       = "Avg Time to First Resolution (ms)"
	ColMedianTimeToFirstResolution    = "Median Time to First Resolution (ms)"
	ColTotalTimeLoggedIn              = "Total Time Logged In (ms)"
	ColMessagesSentWithShortcuts      = "Messages Sent With Shortcuts"
	ColPercentSentWithShortcuts       = "Percent of Messages Sent With Shortcuts"
)

// Bundle is the finalized metric set of one agent in one period. JSON field
// order follows the export's column order.
type Bundle struct {
	MessagesSent                   float64 `json:"Messages Sent"`
	UniqueConversationsMessaged    float64 `json:"Unique Conversations Messaged"`
	ConversationsMarkedDone        float64 `json:"Conversations Marked Done"`
	UniqueCustomersMessaged        int     `json:"Unique Customers Messaged"`
	AvgConversationHandleTime      float64 `json:"Avg Conversation Handle Time (s)"`
	AvgSentMessagesPerConversation float64 `json:"Avg Sent Messages Per Conversation"`
	AvgSentMessagesPerCustomer     float64 `json:"Avg Sent Messages Per Customer"`
	FirstContactResolutionRate     float64 `json:"First Contact Resolution Rate"`
	AvgMessageResponseTimes        float64 `json:"Avg Message Response Times (ms)"`
	AvgFirstResponseTime           float64 `json:"Avg First Response Time (ms)"`
	MedianFirstResponseTime        float64 `json:"Median First Response Time (ms)"`
	AvgTimeToFirstResolution       float64 `json:"Avg Time to First Resolution (ms)"`
	MedianTimeToFirstResolution    float64 `json:"Median Time to First Resolution (ms)"`
	TotalTimeLoggedIn              float64 `json:"Total Time Logged In (ms)"`
	MessagesSentWithShortcuts      float64 `json:"Messages Sent With Shortcuts"`
	PercentSentWithShortcuts       float64 `json:"Percent of Messages Sent With Shortcuts"`
}

// MarshalJSON writes the fields in declaration order. Non-finite values, such
// as an overflowing sum, are written as null.
func (b Bundle) MarshalJSON() ([]byte, error) {
	v := reflect.ValueOf(b)
	t := v.Type()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < t.NumField(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := utils.MarshalJSON(t.Field(i).Tag.Get("json"))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		switch f := v.Field(i); f.Kind() {
		case reflect.Float64:
			x := f.Float()
			if math.IsNaN(x) || math.IsInf(x, 0) {
				buf.WriteString("null")
				continue
			}
			num, err := utils.MarshalJSON(x)
			if err != nil {
				return nil, err
			}
			buf.Write(num)
		default:
			buf.WriteString(strconv.FormatInt(f.Int(), 10))
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type field struct {
	col string
	ptr func(*Bundle) *float64
}

// sumFields are additive counters.
var sumFields = []field{
	{ColMessagesSent, func(b *Bundle) *float64 { return &b.MessagesSent }},
	{ColUniqueConversationsMessaged, func(b *Bundle) *float64 { return &b.UniqueConversationsMessaged }},
	{ColConversationsMarkedDone, func(b *Bundle) *float64 { return &b.ConversationsMarkedDone }},
	{ColTotalTimeLoggedIn, func(b *Bundle) *float64 { return &b.TotalTimeLoggedIn }},
	{ColMessagesSentWithShortcuts, func(b *Bundle) *float64 { return &b.MessagesSentWithShortcuts }},
}

// meanFields are per-row rates averaged without weighting.
var meanFields = []field{
	{ColAvgConversationHandleTime, func(b *Bundle) *float64 { return &b.AvgConversationHandleTime }},
	{ColAvgSentMessagesPerConversation, func(b *Bundle) *float64 { return &b.AvgSentMessagesPerConversation }},
	{ColAvgSentMessagesPerCustomer, func(b *Bundle) *float64 { return &b.AvgSentMessagesPerCustomer }},
	{ColFirstContactResolutionRate, func(b *Bundle) *float64 { return &b.FirstContactResolutionRate }},
	{ColAvgMessageResponseTimes, func(b *Bundle) *float64 { return &b.AvgMessageResponseTimes }},
	{ColAvgFirstResponseTime, func(b *Bundle) *float64 { return &b.AvgFirstResponseTime }},
	{ColMedianFirstResponseTime, func(b *Bundle) *float64 { return &b.MedianFirstResponseTime }},
	{ColAvgTimeToFirstResolution, func(b *Bundle) *float64 { return &b.AvgTimeToFirstResolution }},
	{ColMedianTimeToFirstResolution, func(b *Bundle) *float64 { return &b.MedianTimeToFirstResolution }},
	{ColPercentSentWithShortcuts, func(b *Bundle) *float64 { return &b.PercentSentWithShortcuts }},
}

// MeanColumns lists the columns reduced by arithmetic mean.
func MeanColumns() []string {
	out := make([]string, len(meanFields))
	for i, f := range meanFields {
		out[i] = f.col
	}
	return out
}

// SumColumns lists the columns reduced by summation.
func SumColumns() []string {
	out := make([]string, len(sumFields))
	for i, f := range sumFields {
		out[i] = f.col
	}
	return out
}
