package voice

import "strings"

// reveal shows one more word of an assistant message per tick. The
// controller keeps at most one.
type reveal struct {
	idx   int
	words []string
	n     int
	timer Timer
}

// startReveal cancels any running reveal and starts revealing text into
// msgs[idx], which begins empty.
func (c *Controller) startReveal(idx int, text string) {
	c.cancelReveal()

	words := strings.Fields(text)
	if len(words) == 0 {
		c.msgs[idx].Shown = text
		return
	}
	c.msgs[idx].Shown = ""
	r := &reveal{idx: idx, words: words}
	c.reveal = r
	c.scheduleTick(r)
}

func (c *Controller) scheduleTick(r *reveal) {
	r.timer = c.clock.AfterFunc(c.revealInterval, func() {
		c.post(func() { c.tick(r) })
	})
}

func (c *Controller) tick(r *reveal) {
	if c.reveal != r {
		return
	}
	r.n++
	if r.n == len(r.words) {
		c.msgs[r.idx].Shown = c.msgs[r.idx].Text
		c.reveal = nil
		return
	}
	c.msgs[r.idx].Shown = strings.Join(r.words[:r.n], " ")
	c.scheduleTick(r)
}

// cancelReveal stops the running reveal, if any, and shows its message in
// full.
func (c *Controller) cancelReveal() {
	r := c.reveal
	if r == nil {
		return
	}
	c.reveal = nil
	if r.timer != nil {
		r.timer.Stop()
	}
	c.msgs[r.idx].Shown = c.msgs[r.idx].Text
}
