package walkgraph

import "errors"

var (
	// 错误：地图数据无法解析，构建失败
	ErrInputParse = errors.New("invalid map input")
	// 错误：路径起点与终点映射到同一个路口
	ErrIdenticalEndpoints = errors.New("route start and end are the same intersection")
	// 错误：起终点位于不连通的路网分量中
	ErrNoPath = errors.New("no path")
	// 错误：请求参数非法
	ErrInvalidRequest = errors.New("invalid request")
	// 错误：内部不变量被破坏（如道路引用了不存在的路口），不应出现
	ErrInternal = errors.New("internal error")
)
