package placement

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/zxarchive/zxmirror/pkg/archive"
	"github.com/zxarchive/zxmirror/pkg/download"
	"github.com/zxarchive/zxmirror/pkg/fileutils"
	"github.com/zxarchive/zxmirror/pkg/naming"
)

// placeFile makes the target file exist, verified, at every desired path and
// nowhere else, then records the name and paths. Nothing is recorded until
// every desired path holds the file.
func (p *Pipeline) placeFile(ctx context.Context, in naming.NameInput) error {
	file := in.Target
	log := logger.FromContext(ctx).Data(logger.Data{"file_id": file.ID, "release_id": in.Release.ID})

	p.mu.Lock()
	defer p.mu.Unlock()

	name, err := p.uniqueName(ctx, in)
	if err != nil {
		return err
	}

	dirs, err := p.allocator.Resolve(in.Product, in.Release)
	if err != nil {
		return err
	}
	desired := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		desired = append(desired, filepath.ToSlash(filepath.Join(dir, name)))
	}
	current := file.PathStrings()

	if file.FileName != nil && *file.FileName == name && sameSet(current, desired) {
		present, err := p.allPresent(desired, file.MD5)
		if err != nil {
			return err
		}
		if present {
			return nil
		}
	}

	for _, rel := range desired {
		if err := os.MkdirAll(filepath.Dir(p.abs(rel)), 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", rel)
		}
	}

	src, stale, err := p.findCopy(desired, current, file.MD5)
	if err != nil {
		return err
	}
	if src == "" {
		src, err = p.acquire(ctx, in, p.abs(desired[0]))
		if err != nil {
			return err
		}
	}
	srcIsDir := fileutils.IsDir(src)

	var errs []error
	for _, rel := range desired {
		target := p.abs(rel)
		if srcIsDir {
			target = archive.StripExtensions(target)
		}
		if target == src {
			continue
		}
		ok, err := p.holds(target, srcIsDir, file.MD5)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			continue
		}
		if srcIsDir {
			// An outdated extraction is replaced, not merged into.
			if err := fileutils.RemovePath(target); err != nil {
				errs = append(errs, err)
				continue
			}
		}

		if stale {
			// The first missing target takes over the outdated copy.
			if err := fileutils.MovePath(src, target); err != nil {
				errs = append(errs, errors.Wrapf(err, "failed to rename %s to %s", src, target))
				continue
			}
			log.Info("renamed file", logger.Data{"from": src, "to": target})
			fileutils.RemoveEmptyParents(filepath.Dir(src), p.root)
			src, stale = target, false
			continue
		}

		copyFn := fileutils.CopyFile
		if srcIsDir {
			copyFn = fileutils.CopyDir
		}
		if err := copyFn(src, target); err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to copy %s to %s", src, target))
			continue
		}
		log.Info("copied file", logger.Data{"from": src, "to": target})
	}
	if err := stderrors.Join(errs...); err != nil {
		return err
	}

	if err := p.fileService.UpdatePlacement(ctx, file, name, desired); err != nil {
		return err
	}

	// Copies at paths that are no longer wanted go last, so the database
	// never points at a path that has already been removed.
	wanted := toSet(desired)
	for _, rel := range current {
		if _, ok := wanted[rel]; ok {
			continue
		}
		if err := p.removeEntry(rel); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info("removed stale copy", logger.Data{"path": rel})
	}
	return stderrors.Join(errs...)
}

// uniqueName probes duplicate indexes upward from 0 and returns the first name
// no other file holds. The file's own current name never collides.
func (p *Pipeline) uniqueName(ctx context.Context, in naming.NameInput) (string, error) {
	for i := 0; i < maxDuplicateIndex; i++ {
		name := p.resolver.Resolve(in, i)
		taken, err := p.fileService.ExistsFileName(ctx, name, in.Target.ID)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", errors.Wrapf(ErrNameSpaceExhausted, "file %d", in.Target.ID)
}

// acquire downloads the file to primary and unpacks it when it is a
// container. It returns the on-disk entry that now holds the content.
func (p *Pipeline) acquire(ctx context.Context, in naming.NameInput, primary string) (string, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"file_id": in.Target.ID})

	url := p.downloader.FileURL(in.Release.ID, in.Target.ID)
	if _, err := p.downloader.Download(ctx, url, []string{primary}, in.Target.MD5); err != nil {
		return "", err
	}
	log.Info("downloaded file", logger.Data{"url": url, "path": primary})

	if dir := archive.StripExtensions(primary); dir != primary && fileutils.IsDir(dir) {
		if err := fileutils.RemovePath(dir); err != nil {
			return "", err
		}
		log.Info("removed outdated extraction", logger.Data{"path": dir})
	}

	dir, extracted, err := p.extractor.Extract(primary)
	if err != nil {
		// The verified archive stays in place as the placed copy.
		log.Err(err).Warn("archive extraction failed, keeping archive", logger.Data{"path": primary})
		return primary, nil
	}
	if extracted {
		log.Info("extracted archive", logger.Data{"path": dir})
		return dir, nil
	}
	return primary, nil
}

// findCopy returns an on-disk copy of the content, looking at desired paths
// first and then at recorded paths that are no longer desired (stale=true).
func (p *Pipeline) findCopy(desired, current []string, md5 string) (src string, stale bool, err error) {
	for _, rel := range desired {
		loc, err := p.locate(rel, md5)
		if err != nil || loc != "" {
			return loc, false, err
		}
	}
	wanted := toSet(desired)
	for _, rel := range current {
		if _, ok := wanted[rel]; ok {
			continue
		}
		loc, err := p.locate(rel, md5)
		if err != nil || loc != "" {
			return loc, loc != "", err
		}
	}
	return "", false, nil
}

// locate returns the on-disk entry holding the content for a recorded path:
// the verified file itself, or the directory extracted from an archive with
// the file's MD5.
func (p *Pipeline) locate(rel, md5 string) (string, error) {
	full := p.abs(rel)
	ok, err := download.Verify(full, md5)
	if err != nil {
		return "", err
	}
	if ok {
		return full, nil
	}
	if dir := archive.StripExtensions(full); dir != full && archive.ExtractedFrom(dir, md5) {
		return dir, nil
	}
	return "", nil
}

func (p *Pipeline) allPresent(rels []string, md5 string) (bool, error) {
	for _, rel := range rels {
		loc, err := p.locate(rel, md5)
		if err != nil {
			return false, err
		}
		if loc == "" {
			return false, nil
		}
	}
	return true, nil
}

func (p *Pipeline) holds(target string, isDir bool, md5 string) (bool, error) {
	if isDir {
		return archive.ExtractedFrom(target, md5), nil
	}
	return download.Verify(target, md5)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := toSet(a)
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}
