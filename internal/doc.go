// Package internal 實現多人 3D 世界的即時同步服務。
//
// 讓共享同一個「房間」的多個瀏覽器客戶端看到彼此的位置，
// 以及一組共享的可撿取金幣，透過訊息廣播維持最終一致性。
// 3D 場景渲染（地形、道具、晝夜光影）完全在客戶端，只依賴
// 這裡定義的傳輸協議。
//
// 房間生命週期
//
// 房間按名稱惰性創建，隨最後一個連接離開而銷毀：
//   - Registry.EnsureRoom：首次使用即實體化，附帶一組鋪滿的金幣
//   - Registry.RemoveRoomIfEmpty：每次斷線後調用，空房間連同
//     所有待觸發的重生定時器一起回收
//
// 金幣狀態機
//
// 每枚金幣在 Active → Collected →（延遲後）→ Active 之間循環：
//   - 撿取只對 Active 金幣生效，重複撿取是空操作（每週期至多記一次分）
//   - 重生定時器是唯一自主排程的工作，回調以房間鎖與
//     世代編號保護，與入站訊息安全交錯
//
// 訊息協議
//
// 每條訊息是帶 "type" 欄位的扁平 JSON：
//   - 客戶端 → 服務器：join、requestInit、state、collect
//   - 服務器 → 客戶端：init、state、coinUpdate、playerJoined、playerLeft
//
// 無法解析或未識別的訊息一律丟棄，不回覆發送者；
// 未知房間 / 玩家 / 金幣的引用視為良性空操作。
// 這個核心沒有致命錯誤類別：單條壞訊息最多造成
// 短暫的狀態落後，不會讓房間崩潰。
//
// 併發模型
//
// 每房間一把互斥鎖對應來源系統的單線程事件循環；
// 房間之間完全獨立，沒有任何跨房間共享的實體。
// 廣播對每個接收者都是非阻塞的，慢消費者被跳過，
// 不會拖累同房間的其他連接或其他房間。
package internal
