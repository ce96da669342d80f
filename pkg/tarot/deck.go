package tarot

import (
	"math/rand"
	"sync"
	"time"
)

// Card orientations. FullName concatenates these into the display form the
// bot sends, e.g. "愚者（正位）".
const (
	OrientationUpright  = "正位"
	OrientationReversed = "逆位"
)

// Spread positions for a three-card reading.
var spreadPositions = [3]string{"过去", "现在", "未来"}

// Card is one major arcana card with its upright and reversed meanings.
type Card struct {
	Name     string
	Upright  string
	Reversed string
}

// DrawnCard is a card after the draw fixed its orientation, and for spreads
// its position.
type DrawnCard struct {
	Name        string
	Orientation string
	Meaning     string
	Position    string
}

// FullName returns the card name with its orientation, the form shown to
// users and stored in reading history.
func (c DrawnCard) FullName() string {
	return c.Name + "（" + c.Orientation + "）"
}

// Upright reports whether the card landed upright.
func (c DrawnCard) Upright() bool {
	return c.Orientation == OrientationUpright
}

// majorArcana is the 22-card deck the bot draws from.
var majorArcana = []Card{
	{"愚者", "新的开始、冒险、自由", "轻率、犹豫、错失机会"},
	{"魔术师", "创造力、行动力、机会在手", "计划落空、缺乏自信"},
	{"女祭司", "直觉、内省、潜藏的智慧", "忽视内心、秘密浮现"},
	{"女皇", "丰饶、关爱、生活富足", "依赖、停滞、过度付出"},
	{"皇帝", "掌控、秩序、稳固根基", "固执、滥用权威"},
	{"教皇", "传统、指引、值得信赖的建议", "墨守成规、错误的引导"},
	{"恋人", "和谐、选择、心意相通", "关系失衡、艰难抉择"},
	{"战车", "意志、胜利、勇往直前", "失控、方向迷失"},
	{"力量", "勇气、耐心、以柔克刚", "软弱、自我怀疑"},
	{"隐者", "沉淀、独处、寻找答案", "孤立、逃避现实"},
	{"命运之轮", "转机、好运、顺势而为", "时运不济、计划受阻"},
	{"正义", "公平、真相、因果分明", "偏颇、逃避责任"},
	{"倒吊人", "换个角度、必要的等待", "徒劳、牺牲无果"},
	{"死神", "结束与重生、放下过去", "抗拒改变、停滞不前"},
	{"节制", "平衡、调和、细水长流", "失衡、急于求成"},
	{"恶魔", "诱惑、欲望、束缚", "挣脱束缚、看清执念"},
	{"高塔", "突变、旧结构崩塌", "危机暂缓、余波未平"},
	{"星星", "希望、疗愈、愿望可期", "信心不足、希望渺茫"},
	{"月亮", "不安、迷雾、直觉的考验", "拨云见日、疑虑消散"},
	{"太阳", "成功、喜悦、光明正大", "延迟的喜讯、盲目乐观"},
	{"审判", "觉醒、复苏、重要的召唤", "自我批判、错过时机"},
	{"世界", "圆满、达成、旅程完成", "未竟之事、临门一脚"},
}

// Deck draws cards with random orientation. Safe for concurrent use.
type Deck struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDeck() *Deck {
	return NewDeckSeeded(time.Now().UnixNano())
}

// NewDeckSeeded makes draws reproducible in tests.
func NewDeckSeeded(seed int64) *Deck {
	return &Deck{rng: rand.New(rand.NewSource(seed))}
}

// Draw picks one card and fixes its orientation.
func (d *Deck) Draw() DrawnCard {
	d.mu.Lock()
	idx := d.rng.Intn(len(majorArcana))
	upright := d.rng.Intn(2) == 0
	d.mu.Unlock()

	card := majorArcana[idx]
	drawn := DrawnCard{Name: card.Name}
	if upright {
		drawn.Orientation = OrientationUpright
		drawn.Meaning = card.Upright
	} else {
		drawn.Orientation = OrientationReversed
		drawn.Meaning = card.Reversed
	}
	return drawn
}

// ThreeCardSpread draws three distinct cards for the past/present/future
// positions.
func (d *Deck) ThreeCardSpread() []DrawnCard {
	d.mu.Lock()
	idxs := d.rng.Perm(len(majorArcana))[:3]
	orientations := [3]bool{d.rng.Intn(2) == 0, d.rng.Intn(2) == 0, d.rng.Intn(2) == 0}
	d.mu.Unlock()

	spread := make([]DrawnCard, 3)
	for i, idx := range idxs {
		card := majorArcana[idx]
		drawn := DrawnCard{Name: card.Name, Position: spreadPositions[i]}
		if orientations[i] {
			drawn.Orientation = OrientationUpright
			drawn.Meaning = card.Upright
		} else {
			drawn.Orientation = OrientationReversed
			drawn.Meaning = card.Reversed
		}
		spread[i] = drawn
	}
	return spread
}

// DeckSize reports how many distinct cards the deck holds.
func DeckSize() int {
	return len(majorArcana)
}

// Score rates a spread for the PK battle: upright cards carry twice the
// energy of reversed ones.
func Score(spread []DrawnCard) int {
	score := 0
	for _, card := range spread {
		if card.Upright() {
			score += 30
		} else {
			score += 15
		}
	}
	return score
}

// UprightCount counts upright cards in a spread, the ranking metric.
func UprightCount(spread []DrawnCard) int {
	n := 0
	for _, card := range spread {
		if card.Upright() {
			n++
		}
	}
	return n
}
