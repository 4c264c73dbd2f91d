package meta

// cache is the in-memory multi-revision catalog keyed by collection name.
// All operations are called under the owning Service's lock; cache itself
// does no locking of its own.
type cache struct {
	byName map[string][]*Collection // descending by revision
	byUUID map[string]*Collection
}

func newCache() *cache {
	return &cache{
		byName: make(map[string][]*Collection),
		byUUID: make(map[string]*Collection),
	}
}

// append adds c to the name's revision list, replacing any entry with the
// same uuid, keeping it ordered descending by revision, and indexes it by
// uuid.
func (c *cache) append(col *Collection) {
	list := c.byName[col.Name]
	if old := c.byUUID[col.UUID]; old != nil {
		for j, e := range list {
			if e == old {
				list = append(list[:j], list[j+1:]...)
				break
			}
		}
	}
	i := 0
	for i < len(list) && list[i].Revision > col.Revision {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = col
	c.byName[col.Name] = list
	c.byUUID[col.UUID] = col
}

// current returns the revision flagged current for name, or nil.
func (c *cache) current(name string) *Collection {
	for _, col := range c.byName[name] {
		if col.Current {
			return col
		}
	}
	return nil
}

// latest returns the highest-revision entry for name regardless of current,
// or nil if the name is unknown.
func (c *cache) latest(name string) *Collection {
	list := c.byName[name]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// byUUIDLookup returns the revision with the given uuid, or nil.
func (c *cache) byUUIDLookup(uu string) *Collection {
	return c.byUUID[uu]
}

// deleteByName removes the entire revision history for name.
func (c *cache) deleteByName(name string) {
	for _, col := range c.byName[name] {
		delete(c.byUUID, col.UUID)
	}
	delete(c.byName, name)
}

// filterScan returns every revision (across every name) for which pred
// returns true.
func (c *cache) filterScan(pred func(*Collection) bool) []*Collection {
	var out []*Collection
	for _, list := range c.byName {
		for _, col := range list {
			if pred == nil || pred(col) {
				out = append(out, col)
			}
		}
	}
	return out
}

// filterScanByRepository returns every current revision whose repository
// name matches repoName.
func (c *cache) filterScanByRepository(repoName string) []*Collection {
	return c.filterScan(func(col *Collection) bool {
		return col.Current && col.Repository != nil && col.Repository.Name == repoName
	})
}

// listCurrent returns every name's current revision.
func (c *cache) listCurrent() []*Collection {
	var out []*Collection
	for _, list := range c.byName {
		for _, col := range list {
			if col.Current {
				out = append(out, col)
				break
			}
		}
	}
	return out
}
