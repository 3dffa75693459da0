package observe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/membership"
	"github.com/pipforge/pipcore/pkg/perrors"
	"github.com/pipforge/pipcore/pkg/seal"
)

// ContentQuerier issues a single content query for path, returning its
// current hash, length, existence, and reparse-point metadata. The
// post-execution instantiation backs this with a real stat-plus-hash call;
// the cache-lookup instantiation backs it with a read against the same
// layered views used for typing, since a candidate path set is re-verified
// against the current file system rather than re-executed.
type ContentQuerier interface {
	Query(ctx context.Context, path identity.ID) (fingerprint.FileContentInfo, error)
}

// RuleSet separates pip-specific reclassification rules from global ones;
// §4.4 requires pip rules to apply before global rules.
type RuleSet struct {
	PipRules    []*Rule
	GlobalRules []*Rule
}

// dirEnumInfo records the mode and filter a directory-enumeration entry was
// computed under, needed by absent-path elision to decide whether a child
// probe falls within an already-enumerated, filter-admitting parent.
type dirEnumInfo struct {
	mode   membership.Mode
	filter membership.Filter
}

// Process runs the three-pass algorithm (§4.4) over observations, already
// sorted by expanded path, and returns the resulting typed path set or a
// typed failure. env.IsCacheLookup disables absent-path elision regardless
// of configuration, per "Cache-lookup runs must not elide."
func Process(ctx context.Context, env *Environment, observations []RawObservation, querier ContentQuerier, rules RuleSet) (Result, error) {
	paths := env.Paths

	// Pass 0: classify every observation against the sealed-directory
	// table. In-seal and under-source-seal observations skip hashing.
	classifications := make(map[identity.ID]seal.Classification, len(observations))
	for _, obs := range observations {
		classifications[obs.Path] = env.Seals.Classify(obs.Path)
	}

	// Pass 1: concurrent content queries for everything that needs one.
	contentInfos := make(map[identity.ID]fingerprint.FileContentInfo, len(observations))
	queryErrs := make(map[identity.ID]error)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, obs := range observations {
		obs := obs
		classification := classifications[obs.Path]
		suppressed := classification.InSeal || classification.UnderSourceSeal
		if suppressed || !obs.Flags.Has(HashingRequired) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := querier.Query(ctx, obs.Path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				queryErrs[obs.Path] = err
				return
			}
			contentInfos[obs.Path] = info
		}()
	}
	wg.Wait()
	for path, err := range queryErrs {
		return Result{}, perrors.New(perrors.CodeHashFailure, 101,
			fmt.Sprintf("content query failed for %q", paths.Expand(path)), err)
	}

	// Pass 2: existence and typing.
	typed := make([]TypedObservation, 0, len(observations))
	enumInfo := make(map[identity.ID]dirEnumInfo)
	allowedUndeclared := make(map[identity.ID]bool)
	dynamic := make(map[identity.ID]bool)

	for _, obs := range observations {
		classification := classifications[obs.Path]
		if !classification.InSeal {
			dynamic[obs.Path] = true
		}

		to, enumMode, enumFilter, dropped, aborted, err := typeOne(ctx, env, obs, classification, contentInfos)
		if err != nil {
			return Result{}, err
		}
		if aborted {
			return Result{}, perrors.New(perrors.CodeHashFailure, 102,
				fmt.Sprintf("observed UntrackedFile hash for %q", paths.Expand(obs.Path)), nil)
		}

		// rootObservedAsDynamic: an observation of a declared source
		// seal's own root is neither ordinary source-seal membership nor
		// an undeclared access. It always passes as a dynamic observation,
		// bypassing case 5's access-policy check entirely (§9 Open
		// Question 2).
		rootObservedAsDynamic := classification.RootOfSourceSeal

		// Case 5: possibly-bad access policy check, for anything not
		// declared by seal or source-seal membership.
		if !classification.InSeal && !classification.UnderSourceSeal && !rootObservedAsDynamic {
			switch env.OnAccessCheckFailure(obs.Path) {
			case FailPip:
				return Result{}, perrors.New(perrors.CodeAccessPolicyViolation, 103,
					fmt.Sprintf("undeclared access to %q", paths.Expand(obs.Path)), nil)
			case Suppress:
				continue
			case AllowUndeclared:
				allowedUndeclared[obs.Path] = true
			}
		}

		if dropped {
			continue
		}

		if err := env.CheckProposedObservedInput(obs.Path, to.Kind); err != nil {
			return Result{}, perrors.New(perrors.CodeInternalInvariantViolation, 104,
				fmt.Sprintf("typed observation for %q violates the lifecycle invariant", paths.Expand(obs.Path)), err)
		}

		if to.Kind == DirectoryEnumeration {
			enumInfo[obs.Path] = dirEnumInfo{mode: enumMode, filter: enumFilter}
		}
		typed = append(typed, to)
	}

	// Reclassification: pip-specific rules first, then global.
	typed = applyRules(typed, rules.PipRules, paths)
	typed = applyRules(typed, rules.GlobalRules, paths)

	// Absent-path elision.
	if !env.IsCacheLookup {
		typed = elideAbsentPaths(typed, paths, enumInfo, env.ElideAbsentProbesUnderMinimalGraph)
	}

	sort.Slice(typed, func(i, j int) bool { return paths.Less(typed[i].Path, typed[j].Path) })

	entries := make([]PathSetEntry, 0, len(typed))
	nameSet := make(map[string]bool)
	for _, to := range typed {
		entries = append(entries, PathSetEntry{
			Path:             to.Path,
			Flags:            to.Flags,
			EnumeratePattern: to.EnumeratePattern,
			Kind:             to.Kind,
			Hash:             to.Hash,
			Membership:       to.Membership,
		})
		nameSet[paths.Name(to.Path)] = true
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	dynamicList := make([]identity.ID, 0, len(dynamic))
	for id := range dynamic {
		dynamicList = append(dynamicList, id)
	}
	sort.Slice(dynamicList, func(i, j int) bool { return paths.Less(dynamicList[i], dynamicList[j]) })

	return Result{
		PathSet: PathSet{
			Entries:           entries,
			AccessedFileNames: names,
			UnsafeOptionsTag:  env.UnsafeOptionsTag(),
		},
		DynamicObservations:    dynamicList,
		AllowedUndeclaredReads: allowedUndeclared,
	}, nil
}

// typeOne implements Pass 2's five numbered rules for a single observation.
// It returns the typed observation (when not dropped), the membership mode
// and filter used if the result is a directory enumeration (for later
// absent-path elision bookkeeping), and whether the observation must be
// dropped (case 5's Suppress decision is handled by the caller, not here)
// or must abort the pip (case 1).
func typeOne(ctx context.Context, env *Environment, obs RawObservation, classification seal.Classification, contentInfos map[identity.ID]fingerprint.FileContentInfo) (TypedObservation, membership.Mode, membership.Filter, bool, bool, error) {
	paths := env.Paths
	info, hasInfo := contentInfos[obs.Path]

	// Case 1: UntrackedFile is always fatal.
	if hasInfo && info.Hash.IsUntrackedFile() {
		return TypedObservation{}, 0, nil, false, true, nil
	}

	// Case 2: a content info resolving to a non-directory existence fully
	// decides the kind.
	if hasInfo && info.Existence != fingerprint.ExistsAsDirectory {
		kind := FileContentRead
		if info.Hash.IsAbsentFile() {
			kind = AbsentPathProbe
		}
		return TypedObservation{Kind: kind, Path: obs.Path, Hash: info.Hash, Flags: obs.Flags}, 0, nil, false, false, nil
	}

	// Case 3: consult the layered views.
	existence, err := resolveExistence(ctx, env, obs, info, hasInfo)
	if err != nil {
		return TypedObservation{}, 0, nil, false, false, err
	}

	// "Absent directory treated as existent under opaque": a
	// directory-location probe (no enumeration) that resolved absent but
	// lies under a known output directory is reclassified as existent.
	if obs.Flags.Has(DirectoryLocation) && !obs.Flags.Has(Enumeration) &&
		existence == fingerprint.Nonexistent && env.TreatAbsentDirectoryAsExistentUnderOutput &&
		env.MayContainOutputs != nil && env.MayContainOutputs(obs.Path) {
		existence = fingerprint.ExistsAsDirectory
	}

	// Case 4: a file resolved via the layered views may actually be a
	// directory symlink/junction when the probe treats it as a directory
	// location or enumeration.
	if existence == fingerprint.ExistsAsFile && (obs.Flags.Has(DirectoryLocation) || obs.Flags.Has(Enumeration)) {
		if hasInfo && info.ReparsePoint != nil && info.ReparsePoint.IsDirectoryReparsePoint {
			existence = fingerprint.ExistsAsDirectory
		}
	}

	// Case 4 (cont'd): map existence + flags to a typed observation.
	switch existence {
	case fingerprint.Nonexistent:
		return TypedObservation{Kind: AbsentPathProbe, Path: obs.Path, Hash: fingerprint.AbsentFile(), Flags: obs.Flags}, 0, nil, false, false, nil
	case fingerprint.ExistsAsDirectory:
		if obs.Flags.Has(Enumeration) {
			mode := membership.DefaultFingerprint
			if env.MembershipModeOf != nil {
				mode = env.MembershipModeOf(obs.Path)
			}
			filter := enumerationFilter(env, obs)
			fp, err := env.Fingerprinter.Compute(ctx, obs.Path, mode, filter, obs.SearchPath)
			if err != nil {
				return TypedObservation{}, 0, nil, false, false, err
			}
			if fp.IsZero() {
				return TypedObservation{Kind: AbsentPathProbe, Path: obs.Path, Hash: fingerprint.AbsentFile(), Flags: obs.Flags}, 0, nil, false, false, nil
			}
			pattern := env.GetEnumeratePatternRegex(obs.Path)
			return TypedObservation{Kind: DirectoryEnumeration, Path: obs.Path, Membership: fp, Flags: obs.Flags, EnumeratePattern: pattern}, mode, filter, false, false, nil
		}
		return TypedObservation{Kind: ExistingDirectoryProbe, Path: obs.Path, Flags: obs.Flags}, 0, nil, false, false, nil
	default: // ExistsAsFile
		if obs.Flags.Has(FileProbe) && !obs.Flags.Has(HashingRequired) {
			return TypedObservation{Kind: ExistingFileProbe, Path: obs.Path, Flags: obs.Flags}, 0, nil, false, false, nil
		}
		hash := fingerprint.Hash{}
		if hasInfo {
			hash = info.Hash
		}
		return TypedObservation{Kind: FileContentRead, Path: obs.Path, Hash: hash, Flags: obs.Flags}, 0, nil, false, false, nil
	}
}

// resolveExistence implements §4.4 Pass 2 case 3: the layered
// Output/Real/FullGraph lookup.
func resolveExistence(ctx context.Context, env *Environment, obs RawObservation, info fingerprint.FileContentInfo, hasInfo bool) (fingerprint.ExistenceTag, error) {
	if hasInfo && info.Existence == fingerprint.ExistsAsDirectory {
		return fingerprint.ExistsAsDirectory, nil
	}

	outExistence, err := env.Views.Output.GetExistence(ctx, obs.Path)
	if err != nil {
		return fingerprint.Nonexistent, err
	}
	if outExistence != fingerprint.Nonexistent {
		return outExistence, nil
	}

	realExistence, err := env.Views.Real.GetExistence(ctx, obs.Path)
	if err != nil {
		return fingerprint.Nonexistent, err
	}

	mayContainOutputs := env.MayContainOutputs != nil && env.MayContainOutputs(obs.Path)
	if !mayContainOutputs {
		return realExistence, nil
	}
	if realExistence == fingerprint.ExistsAsFile {
		return realExistence, nil
	}

	fgExistence, err := env.Views.FullGraph.GetExistence(ctx, obs.Path)
	if err != nil {
		return fingerprint.Nonexistent, err
	}
	switch fgExistence {
	case fingerprint.ExistsAsDirectory:
		return fingerprint.ExistsAsDirectory, nil
	case fingerprint.ExistsAsFile:
		return fingerprint.Nonexistent, nil
	default:
		if env.AllowUndeclaredSourceReads && env.CreatedByAnyPip != nil && !env.CreatedByAnyPip(obs.Path) {
			return realExistence, nil
		}
		return fingerprint.Nonexistent, nil
	}
}

// enumerationFilter builds the membership filter for a directory
// enumeration: a search-path filter over referenced file-name atoms when
// the observation is a search-path enumeration, a pattern filter when an
// enumeration pattern is configured, or the allow-all filter otherwise.
func enumerationFilter(env *Environment, obs RawObservation) membership.Filter {
	if obs.Flags.Has(Enumeration) && obs.SearchPath && env.SearchPathAtoms != nil {
		return membership.NewSearchPathFilter(env.SearchPathAtoms(obs.Path))
	}
	if raw := env.GetEnumeratePatternRegex(obs.Path); raw != "" {
		if pattern, err := seal.NewPattern(raw); err == nil {
			return membership.NewPatternFilter(raw, pattern)
		}
	}
	return membership.AllowAllFilter{}
}

// applyRules applies one rule set (either the pip-specific or the global
// set) to typed, in order, dropping or retyping matches.
func applyRules(typed []TypedObservation, rules []*Rule, paths *identity.Table) []TypedObservation {
	if len(rules) == 0 {
		return typed
	}
	result := typed[:0:0]
	for _, to := range typed {
		dropped := false
		for _, rule := range rules {
			if !rule.appliesToKind(to.Kind) {
				continue
			}
			if !rule.PathPattern.MatchString(paths.Expand(to.Path)) {
				continue
			}
			if rule.Target.Drop {
				dropped = true
				break
			}
			to.Kind = rule.Target.Kind
		}
		if !dropped {
			result = append(result, to)
		}
	}
	return result
}

// elideAbsentPaths drops absent-path-probe entries whose parent has
// already been enumerated under an elision-permitting mode and whose name
// is admitted by that enumeration's filter, plus absent paths nested under
// another elided absent path. Entries must already be sorted by expanded
// path, so an ancestor's elision decision is always made before its
// descendants are considered.
func elideAbsentPaths(typed []TypedObservation, paths *identity.Table, enumInfo map[identity.ID]dirEnumInfo, allowMinimalGraph bool) []TypedObservation {
	sorted := make([]TypedObservation, len(typed))
	copy(sorted, typed)
	sort.Slice(sorted, func(i, j int) bool { return paths.Less(sorted[i].Path, sorted[j].Path) })

	elided := make(map[identity.ID]bool)
	result := make([]TypedObservation, 0, len(sorted))
	for _, to := range sorted {
		if to.Kind != AbsentPathProbe {
			result = append(result, to)
			continue
		}

		parent := paths.Parent(to.Path)
		if elided[parent] {
			elided[to.Path] = true
			continue
		}
		if info, ok := enumInfo[parent]; ok && elisionPermitted(info.mode, allowMinimalGraph) && info.filter.Admit(paths.Name(to.Path)) {
			elided[to.Path] = true
			continue
		}
		result = append(result, to)
	}
	return result
}

func elisionPermitted(mode membership.Mode, allowMinimalGraph bool) bool {
	switch mode {
	case membership.RealFilesystem:
		return true
	case membership.MinimalGraph:
		return allowMinimalGraph
	default:
		return false
	}
}
