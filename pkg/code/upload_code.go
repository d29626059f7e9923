package code

// Common codes // 通用状态码
var (
	Success = NewSuss(200, lang{
		en:    "Success",
		zh_cn: "成功",
	})
	SuccessCreate = NewSuss(201, lang{
		en:    "Created",
		zh_cn: "创建成功",
	})
	Failed = NewError(400, lang{
		en:    "Failed",
		zh_cn: "失败",
	})
	ErrorServerInternal = NewError(500, lang{
		en:    "Server internal error",
		zh_cn: "服务内部错误",
	})
	ErrorInvalidParams = NewError(10001, lang{
		en:    "Invalid request parameters",
		zh_cn: "请求参数错误",
	})
	ErrorNotFoundAPI = NewError(10002, lang{
		en:    "API not found",
		zh_cn: "接口不存在",
	})
	ErrorTooManyRequests = NewError(10003, lang{
		en:    "Too many requests",
		zh_cn: "请求过多",
	})
	ErrorDBQuery = NewError(10004, lang{
		en:    "Database query error",
		zh_cn: "数据库查询错误",
	})
	ErrorRequestTimeout = NewError(10005, lang{
		en:    "Request timed out",
		zh_cn: "请求超时",
	})
)

// Upload session codes // 上传会话状态码
var (
	ErrorSessionNotFound = NewError(20001, lang{
		en:    "Upload not found",
		zh_cn: "上传会话不存在",
	})
	ErrorInvalidChunkIndex = NewError(20002, lang{
		en:    "Invalid chunk index",
		zh_cn: "分片序号无效",
	})
	ErrorChunkSaveFailed = NewError(20003, lang{
		en:    "Chunk save failed",
		zh_cn: "分片保存失败",
	})
	ErrorUploadIncomplete = NewError(20004, lang{
		en:    "Upload incomplete",
		zh_cn: "上传未完成",
	})
	ErrorFinalizeInProgress = NewError(20005, lang{
		en:    "Finalize already in progress",
		zh_cn: "合并处理进行中",
	})
	ErrorChunkMissing = NewError(20006, lang{
		en:    "Chunk data missing",
		zh_cn: "分片数据缺失",
	})
	ErrorAssembleFailed = NewError(20007, lang{
		en:    "File assembly failed",
		zh_cn: "文件合并失败",
	})
	ErrorSessionCreateFailed = NewError(20008, lang{
		en:    "Upload session create failed",
		zh_cn: "上传会话创建失败",
	})
	ErrorSessionCompleted = NewError(20009, lang{
		en:    "Upload already completed",
		zh_cn: "上传已完成",
	})
	ErrorChunkTooLarge = NewError(20010, lang{
		en:    "Chunk exceeds size limit",
		zh_cn: "分片超出大小限制",
	})
)
