package colorist

import "github.com/Skryldev/colorist/core"

// Inner exposes the underlying core.Processor for advanced use (e.g., custom
// compilers or direct Convert requests).  Prefer the high-level API for
// normal usage.
func (p *Processor) Inner() *core.Processor { return p.inner }
