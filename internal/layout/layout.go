package layout

import (
	"math"
	"sync"
)

// Point is a position in the office canvas, in canvas units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Options struct {
	CenterX, CenterY float64
	Radius           float64 // radius of the first ring
	RingGap          float64 // added per ring
	PerRing          int     // slots on each ring
	Capacity         int     // maximum number of memoized positions
}

func DefaultOptions() Options {
	return Options{
		CenterX:  400,
		CenterY:  300,
		Radius:   160,
		RingGap:  110,
		PerRing:  8,
		Capacity: 256,
	}
}

// Cache memoizes ring positions by ordinal agent index. Sessions that must
// not share positions construct their own Cache.
type Cache struct {
	opts Options

	mu        sync.Mutex
	positions []Point
}

func NewCache(opts Options) *Cache {
	if opts.PerRing <= 0 {
		opts.PerRing = 1
	}
	if opts.Capacity < 0 {
		opts.Capacity = 0
	}
	return &Cache{opts: opts}
}

// Prime fills the cache for indexes 0..n-1, bounded by the capacity.
func (c *Cache) Prime(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.opts.Capacity {
		n = c.opts.Capacity
	}
	for i := len(c.positions); i < n; i++ {
		c.positions = append(c.positions, c.compute(i))
	}
}

// Position returns the position for index i. Indexes beyond the capacity
// are computed on demand and not stored.
func (c *Cache) Position(i int) Point {
	if i < 0 {
		i = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < len(c.positions) {
		return c.positions[i]
	}
	if i >= c.opts.Capacity {
		return c.compute(i)
	}
	for j := len(c.positions); j <= i; j++ {
		c.positions = append(c.positions, c.compute(j))
	}
	return c.positions[i]
}

// Len reports how many positions are memoized.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.positions)
}

func (c *Cache) compute(i int) Point {
	ring := i / c.opts.PerRing
	slot := i % c.opts.PerRing
	radius := c.opts.Radius + float64(ring)*c.opts.RingGap
	// Offset alternate rings by half a slot so agents don't line up radially.
	angle := 2*math.Pi*float64(slot)/float64(c.opts.PerRing) - math.Pi/2
	if ring%2 == 1 {
		angle += math.Pi / float64(c.opts.PerRing)
	}
	return Point{
		X: math.Round((c.opts.CenterX+radius*math.Cos(angle))*100) / 100,
		Y: math.Round((c.opts.CenterY+radius*math.Sin(angle))*100) / 100,
	}
}
