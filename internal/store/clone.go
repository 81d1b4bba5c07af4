package store

import "maps"

func cloneScan(s *Scan) *Scan {
	if s == nil {
		return nil
	}
	out := *s
	out.Diagnostics = maps.Clone(s.Diagnostics)
	if s.Provider != nil {
		p := *s.Provider
		out.Provider = &p
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return &out
}

func cloneSnapshot(s *Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Diagnostics = maps.Clone(s.Diagnostics)
	out.Blogs = cloneItems(s.Blogs)
	out.Pages = cloneItems(s.Pages)
	return &out
}

func cloneItems(items []ContentItem) []ContentItem {
	if items == nil {
		return nil
	}
	out := make([]ContentItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Plagiarism != nil {
			v := *it.Plagiarism
			out[i].Plagiarism = &v
		}
		if it.PlagiarismCheckedAt != nil {
			v := *it.PlagiarismCheckedAt
			out[i].PlagiarismCheckedAt = &v
		}
		out[i].PlagiarismSources = append([]PlagiarismSource{}, it.PlagiarismSources...)
	}
	return out
}
