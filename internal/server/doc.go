// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理。

Manager 封装 net/http.Server：Start 非阻塞启动，Shutdown 在超时内
排空请求，Errors 传播运行期错误。WebSocket 连接被劫持后不受
http.Server 管理，通过 RegisterOnShutdown 注册关闭逻辑。
服务进程同时运行会话端点与 /metrics 两个 Manager。
*/
package server
