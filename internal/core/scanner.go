package core

// This file implements the dependency scanner (§4.3): the decision
// procedure that, for a demanded key, decides whether its prior result
// can be reused or whether a task must run. A rule's recorded
// dependencies are checked in order by demanding each one, so a stale
// dependency is rebuilt by the scan itself. The scan stops at the first
// dependency built more recently than the rule; the dependencies after
// it are demanded only if the rule's new task requests them. Checking a
// recorded dependency is not deferred until some task requests it.

// ruleInfo returns the RuleInfo for key, creating it (and resolving its
// Rule via the registry or the delegate) if this is the first time the
// engine has considered key.
func (e *Engine) ruleInfo(key Key) (*RuleInfo, error) {
	if info, ok := e.infos[key]; ok {
		if err := e.ensureLoaded(info, key); err != nil {
			return nil, err
		}
		return info, nil
	}

	rule, ok := e.rules[key]
	if !ok {
		resolved, err := e.delegate.LookupRule(key)
		if err != nil {
			return nil, newLookupError(key, err)
		}
		if resolved.Key() != key {
			return nil, newConfigError("delegate returned a rule for a different key than requested")
		}
		rule = resolved
	}

	info := &RuleInfo{Rule: rule}
	e.infos[key] = info
	if err := e.ensureLoaded(info, key); err != nil {
		return nil, err
	}
	return info, nil
}

// ensureLoaded performs the once-per-engine-lifetime lazy database read
// (§4.6): the first time a rule is considered, its persisted record (if
// any) is pulled in before any scanning decision is made.
func (e *Engine) ensureLoaded(info *RuleInfo, key Key) error {
	if info.loaded {
		return nil
	}
	info.loaded = true
	if e.db == nil {
		return nil
	}
	result, ok, err := e.db.LookupRuleResult(e.ctx, key)
	if err != nil {
		return newDatabaseError(key, err)
	}
	if !ok {
		return nil
	}
	info.Value = result.Value
	info.HasValue = true
	info.BuiltAt = result.BuiltAt
	info.ComputedAt = result.ComputedAt
	info.Dependencies = result.Dependencies
	return nil
}

// demand registers w as a waiter for key reaching a value current for
// this build, starting the rule's scan if nothing has considered it yet
// this build. Returns an error only for a fatal, build-aborting
// condition (rule lookup failure, database failure).
func (e *Engine) demand(key Key, w waiter) error {
	info, err := e.ruleInfo(key)
	if err != nil {
		return err
	}

	if info.State == StateIsComplete && info.ComputedAt == e.currentIteration {
		w.deliver(e, info)
		return nil
	}

	info.waiters = append(info.waiters, w)

	if info.touchedAt == e.currentIteration {
		// Already being scanned or run this build; the waiter will be
		// resolved when that work finishes.
		return nil
	}

	e.beginScan(info)
	return nil
}

// beginScan starts the decision procedure for a rule that has not yet
// been considered this build (§4.3 steps 1-3).
func (e *Engine) beginScan(info *RuleInfo) {
	info.touchedAt = e.currentIteration
	info.scanIndex = 0

	if !info.HasValue {
		e.runRule(info)
		return
	}
	if !info.Rule.IsResultValid(info.Value) {
		e.runRule(info)
		return
	}

	info.State = StateIsScanning
	e.advanceScan(info)
}

// advanceScan demands the next not-yet-checked recorded dependency, or
// concludes the rule is current if every dependency has been checked
// clean (§4.3 step 5).
func (e *Engine) advanceScan(info *RuleInfo) {
	if info.scanIndex >= len(info.Dependencies) {
		info.ComputedAt = e.currentIteration
		info.State = StateIsComplete
		e.resolveWaiters(info)
		return
	}

	dep := info.Dependencies[info.scanIndex]
	if err := e.demand(dep, scanWaiter{forRule: info}); err != nil {
		e.fail(err)
	}
}

// continueScanStep is reached once the dependency at info.scanIndex has
// a value current for this build. If it was rebuilt more recently than
// info itself, info is stale and must run; critically, scanning stops
// here rather than continuing to check info's remaining recorded
// dependencies, so no dependency is ever run merely because it is an
// old entry in a list whose owner is already known to be rebuilding
// (the no-speculative-execution invariant, §4.3/§8 scenario S2).
func (e *Engine) continueScanStep(info *RuleInfo, dep *RuleInfo) {
	if dep.BuiltAt > info.BuiltAt {
		e.runRule(info)
		return
	}
	info.scanIndex++
	e.advanceScan(info)
}

// runRule marks info stale, creates its task, and dispatches Start
// through the execution queue (§4.3 step 6).
func (e *Engine) runRule(info *RuleInfo) {
	info.State = StateNeedsToRun

	task := info.Rule.CreateTask()
	ti := newTaskInfo(task, info)
	info.Pending = ti
	info.State = StateInProgressScanning

	ti.mu.Lock()
	ti.startDelivered = true
	ti.callbackActive = true
	ti.mu.Unlock()

	e.runCallback(ti, info.Rule.Key(), func(tih TaskInterface) {
		task.Start(tih)
	})
}
