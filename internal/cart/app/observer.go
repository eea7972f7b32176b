package app

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	ContentsChanged     func()
	LoadingStateChanged func(isLoading bool)
	Error               func(err error)
}

func (f ObserverFuncs) OnContentsChanged() {
	if f.ContentsChanged != nil {
		f.ContentsChanged()
	}
}

func (f ObserverFuncs) OnLoadingStateChanged(isLoading bool) {
	if f.LoadingStateChanged != nil {
		f.LoadingStateChanged(isLoading)
	}
}

func (f ObserverFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

type subscription struct {
	id  uint64
	obs Observer
}

// subscribers is an ordered list of observers; not safe for concurrent use on its own.
type subscribers struct {
	next uint64
	list []subscription
}

func (s *subscribers) add(obs Observer) uint64 {
	s.next++
	s.list = append(s.list, subscription{id: s.next, obs: obs})
	return s.next
}

func (s *subscribers) remove(id uint64) {
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers) snapshot() []Observer {
	out := make([]Observer, len(s.list))
	for i, sub := range s.list {
		out[i] = sub.obs
	}
	return out
}
