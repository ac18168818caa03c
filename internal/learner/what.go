package learner

import (
	"github.com/sells-group/outreach-engine/internal/model"
)

// minTemplateSends is the floor below which a template's conversion rate
// is noise and the template is not considered.
const minTemplateSends = 10

type templateStats struct {
	sends     int
	opened    int
	replied   int
	converted int
}

// detectWhat finds the best-converting content template. Records without
// a template key (manual one-off sends) carry no content signal and are
// excluded from the sample.
func detectWhat(records []model.OutcomeRecord) *detection {
	tagged := make([]model.OutcomeRecord, 0, len(records))
	byKey := map[string]*templateStats{}
	for _, r := range records {
		if r.TemplateKey == "" {
			continue
		}
		tagged = append(tagged, r)
		st := byKey[r.TemplateKey]
		if st == nil {
			st = &templateStats{}
			byKey[r.TemplateKey] = st
		}
		st.sends++
		if r.Opened {
			st.opened++
		}
		if r.Replied {
			st.replied++
		}
		if r.Converted {
			st.converted++
		}
	}

	det := &detection{sample: len(tagged)}

	var bestKey string
	var best *templateStats
	for key, st := range byKey {
		if st.sends < minTemplateSends {
			continue
		}
		if best == nil || better(st, key, best, bestKey) {
			bestKey, best = key, st
		}
	}
	if best == nil || best.converted == 0 {
		return det
	}

	first, second := halves(tagged)
	det.halfStats = [2]float64{
		templateRate(first, bestKey),
		templateRate(second, bestKey),
	}
	det.payload = &model.WhatPayload{
		TemplateKey:    bestKey,
		OpenRate:       float64(best.opened) / float64(best.sends),
		ReplyRate:      float64(best.replied) / float64(best.sends),
		ConversionRate: rateOf(best),
	}
	return det
}

func rateOf(st *templateStats) float64 {
	return float64(st.converted) / float64(st.sends)
}

// better imposes a total order on templates so the winner does not
// depend on map iteration order: conversion rate, then sample size, then
// key.
func better(a *templateStats, aKey string, b *templateStats, bKey string) bool {
	ra, rb := rateOf(a), rateOf(b)
	if ra != rb {
		return ra > rb
	}
	if a.sends != b.sends {
		return a.sends > b.sends
	}
	return aKey < bKey
}

func templateRate(records []model.OutcomeRecord, key string) float64 {
	var sends, converted int
	for _, r := range records {
		if r.TemplateKey != key {
			continue
		}
		sends++
		if r.Converted {
			converted++
		}
	}
	if sends == 0 {
		return 0
	}
	return float64(converted) / float64(sends)
}
