package tarot

import (
	"encoding/json"
	"time"
)

// GroupFortune is the daily two-card weather report for one group. The
// first request of the day generates it; everyone after that sees the same
// one.
type GroupFortune struct {
	MainCard DrawnCard `json:"main_card"`
	SubCard  DrawnCard `json:"sub_card"`
	Stars    int       `json:"stars"`
	Summary  string    `json:"summary"`
	Suitable []string  `json:"suitable"`
	Avoid    []string  `json:"avoid"`
	Date     string    `json:"date"`
}

var suitablePool = []string{
	"开展新项目", "团队协作", "创意讨论", "学习新知识",
	"社交活动", "规划未来", "处理重要事务", "寻求建议",
}

var avoidPool = []string{
	"冲动决策", "消极情绪", "过度承诺", "忽视细节",
	"孤立行动", "盲目跟风", "保守主义", "过度焦虑",
}

// GenerateGroupFortune draws two cards and rates the day: two uprights is a
// five-star day, one is steady, none calls for caution.
func (d *Deck) GenerateGroupFortune(now time.Time) GroupFortune {
	main := d.Draw()
	sub := d.Draw()

	positive := 0
	if main.Upright() {
		positive++
	}
	if sub.Upright() {
		positive++
	}

	fortune := GroupFortune{
		MainCard: main,
		SubCard:  sub,
		Date:     now.Format("2006年01月02日"),
	}
	switch positive {
	case 2:
		fortune.Stars = 5
		fortune.Summary = "今天运势超棒！适合大胆尝试，万事皆可期~ ✨"
	case 1:
		fortune.Stars = 3
		fortune.Summary = "运势平稳的一天，稳扎稳打就好~"
	default:
		fortune.Stars = 2
		fortune.Summary = "今天可能会有些小波动，放慢脚步，顺其自然~"
	}

	if positive >= 1 {
		fortune.Suitable = d.sample(suitablePool, 3)
		fortune.Avoid = d.sample(avoidPool, 2)
	} else {
		fortune.Suitable = d.sample(suitablePool[:4], 2)
		fortune.Avoid = d.sample(avoidPool, 3)
	}
	return fortune
}

// sample picks n distinct entries from pool.
func (d *Deck) sample(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	d.mu.Lock()
	idxs := d.rng.Perm(len(pool))[:n]
	d.mu.Unlock()

	out := make([]string, n)
	for i, idx := range idxs {
		out[i] = pool[idx]
	}
	return out
}

// EncodeFortune serializes a fortune for the group store.
func EncodeFortune(f GroupFortune) (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeFortune parses a stored fortune.
func DecodeFortune(raw string) (GroupFortune, error) {
	var f GroupFortune
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return GroupFortune{}, err
	}
	return f, nil
}
