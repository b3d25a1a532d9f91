package mroute

// store4 holds the IPv4 wildcard templates (confList) and the concrete
// (S,G) kernel entries materialised from them (dynList). Both are
// unordered; linear scans are fine at the sizes involved (interface
// count, active wildcards).
type store4 struct {
	confList []Route4
	dynList  []Route4
}

func (s *store4) addConf(r Route4) { s.confList = append(s.confList, r.clone()) }

// delConf removes every confList entry matching tmpl at exactly tmpl.Len,
// and every dynList entry descended from one of those, returning the
// removed dynamic routes so the caller can withdraw them from the kernel
// first.
func (s *store4) delConf(tmpl Route4) (withdrawn []Route4) {
	remaining := s.confList[:0:0]
	for _, e := range s.confList {
		if match4(&e, &tmpl) && e.Len == tmpl.Len {
			withdrawn = append(withdrawn, s.withdrawDynFor(e)...)
			continue
		}
		remaining = append(remaining, e)
	}
	s.confList = remaining
	return withdrawn
}

// withdrawDynFor removes and returns every dynList entry that falls
// under the wildcard tmpl's prefix on its inbound VIF, whichever
// template originally produced it.
func (s *store4) withdrawDynFor(tmpl Route4) (withdrawn []Route4) {
	remaining := s.dynList[:0:0]
	for _, d := range s.dynList {
		if match4(&tmpl, &d) {
			withdrawn = append(withdrawn, d)
			continue
		}
		remaining = append(remaining, d)
	}
	s.dynList = remaining
	return withdrawn
}

// matchConf returns the first confList template matching cand, as
// DynAdd requires.
func (s *store4) matchConf(cand Route4) (Route4, bool) {
	for _, e := range s.confList {
		if match4(&e, &cand) {
			return e, true
		}
	}
	return Route4{}, false
}

func (s *store4) addDyn(r Route4) { s.dynList = append(s.dynList, r.clone()) }

func (s *store4) flushDyn() []Route4 {
	out := s.dynList
	s.dynList = nil
	return out
}
