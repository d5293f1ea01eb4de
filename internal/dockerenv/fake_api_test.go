package dockerenv

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// volumeRemoveCall records one VolumeRemove invocation.
type volumeRemoveCall struct {
	Name  string
	Force bool
}

// fakeAPI is an in-memory engine client for tests. Error fields script
// failures; call slices record what the code under test did.
type fakeAPI struct {
	mu sync.Mutex

	// ContainerCreate: errors consumed one per call (nil entry = success);
	// when the slice runs out, creation succeeds
	createErrs     []error
	createCalls    int
	createdConfigs []*container.Config
	createdHosts   []*container.HostConfig
	createdNames   []string

	startErr   error
	startCalls int

	stopErr     error
	stopCalls   []string
	removeErr   error
	removeCalls []string

	containers        []container.Summary
	listContainersErr error

	volumes           []*volume.Volume
	listVolumesErr    error
	volumeCreateErr   error
	createdVolumes    []volume.CreateOptions
	volumeRemoveErr   error
	volumeRemoveCalls []volumeRemoveCall

	networks           []network.Summary
	listNetworksErr    error
	networkRemoveErr   error
	networkRemoveCalls []string

	images    []image.Summary
	pullCalls []string

	execCreateErr error
	execStartErr  error
	execExitCode  int
	execCalls     []container.ExecOptions
}

func (f *fakeAPI) Ping(ctx context.Context) (types.Ping, error) { return types.Ping{}, nil }
func (f *fakeAPI) Close() error                                 { return nil }

func (f *fakeAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	f.createdConfigs = append(f.createdConfigs, config)
	f.createdHosts = append(f.createdHosts, hostConfig)
	f.createdNames = append(f.createdNames, containerName)

	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return container.CreateResponse{}, err
		}
	}
	return container.CreateResponse{ID: fmt.Sprintf("container-%d", f.createCalls)}, nil
}

func (f *fakeAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeAPI) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls = append(f.stopCalls, containerID)
	return f.stopErr
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, containerID)
	return f.removeErr
}

func (f *fakeAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listContainersErr != nil {
		return nil, f.listContainersErr
	}
	return f.containers, nil
}

func (f *fakeAPI) ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls = append(f.execCalls, options)
	if f.execCreateErr != nil {
		return container.ExecCreateResponse{}, f.execCreateErr
	}
	return container.ExecCreateResponse{ID: "exec-1"}, nil
}

func (f *fakeAPI) ContainerExecStart(ctx context.Context, execID string, options container.ExecStartOptions) error {
	return f.execStartErr
}

func (f *fakeAPI) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return container.ExecInspect{ExecID: execID, Running: false, ExitCode: f.execExitCode}, nil
}

func (f *fakeAPI) ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images, nil
}

func (f *fakeAPI) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullCalls = append(f.pullCalls, refStr)
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeAPI) VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdVolumes = append(f.createdVolumes, options)
	if f.volumeCreateErr != nil {
		return volume.Volume{}, f.volumeCreateErr
	}
	return volume.Volume{Name: options.Name, Labels: options.Labels}, nil
}

func (f *fakeAPI) VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listVolumesErr != nil {
		return volume.ListResponse{}, f.listVolumesErr
	}
	return volume.ListResponse{Volumes: f.volumes}, nil
}

func (f *fakeAPI) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumeRemoveCalls = append(f.volumeRemoveCalls, volumeRemoveCall{Name: volumeID, Force: force})
	return f.volumeRemoveErr
}

func (f *fakeAPI) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listNetworksErr != nil {
		return nil, f.listNetworksErr
	}
	return f.networks, nil
}

func (f *fakeAPI) NetworkRemove(ctx context.Context, networkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networkRemoveCalls = append(f.networkRemoveCalls, networkID)
	return f.networkRemoveErr
}

var _ API = (*fakeAPI)(nil)
