package service

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// RandomSource источник случайности для fallback-выбора и ссылок на встречу.
// *rand.Rand ему удовлетворяет; тесты подставляют детерминированный генератор.
type RandomSource interface {
	Intn(n int) int
}

type lockedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLockedRandom потокобезопасная обёртка над math/rand
func NewLockedRandom(seed int64) RandomSource {
	return &lockedRandom{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

const (
	meetingRoomMin   = 100000000
	meetingRoomRange = 900000000
)

// MeetingLinks генерирует ссылки на видеовстречу с 9-значным номером комнаты
type MeetingLinks struct {
	baseURL string
	rnd     RandomSource
}

func NewMeetingLinks(baseURL string, rnd RandomSource) *MeetingLinks {
	return &MeetingLinks{
		baseURL: strings.TrimRight(baseURL, "/"),
		rnd:     rnd,
	}
}

// Generate возвращает новую ссылку вида {base}/j/{room}?pwd=prereq
func (g *MeetingLinks) Generate() string {
	room := meetingRoomMin + g.rnd.Intn(meetingRoomRange)
	return fmt.Sprintf("%s/j/%d?pwd=prereq", g.baseURL, room)
}
